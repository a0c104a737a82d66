package handlers

import (
	"fmt"
	"strings"

	"github.com/AlexTLDR/seatplan/internal/guests"
	"github.com/AlexTLDR/seatplan/internal/roster"
	"github.com/AlexTLDR/seatplan/internal/seating"
	"github.com/AlexTLDR/seatplan/internal/utils"
)

type companionForm struct {
	Name      string `json:"name" validate:"required,max=120"`
	AgeGroup  string `json:"age_group" validate:"omitempty,oneof=Adulto Ragazzo Bambino"`
	Allergies string `json:"allergies" validate:"max=500"`
}

type guestForm struct {
	Name       string          `json:"name" validate:"required,max=120"`
	Category   string          `json:"category" validate:"omitempty,oneof=family-his family-hers friends colleagues"`
	AgeGroup   string          `json:"age_group" validate:"omitempty,oneof=Adulto Ragazzo Bambino"`
	Phone      string          `json:"phone" validate:"max=32"`
	Allergies  string          `json:"allergies" validate:"max=500"`
	Companions []companionForm `json:"companions" validate:"max=30,dive"`
}

// input converts the form, normalising the phone number to E.164.
func (f guestForm) input(region string) (roster.GuestInput, error) {
	in := roster.GuestInput{
		Name:      strings.TrimSpace(f.Name),
		AgeGroup:  guests.ParseAgeGroup(f.AgeGroup),
		Allergies: f.Allergies,
	}
	if f.Category != "" {
		in.Category = guests.ParseCategory(f.Category)
	}

	if phone := strings.TrimSpace(f.Phone); phone != "" {
		normalized, err := utils.NormalizePhoneNumber(phone, region)
		if err != nil {
			return roster.GuestInput{}, fmt.Errorf("%w: %v", errInvalidPhone, err)
		}
		in.Phone = normalized
	}

	in.Companions = companionInputs(f.Companions)
	return in, nil
}

func companionInputs(forms []companionForm) []roster.CompanionInput {
	out := make([]roster.CompanionInput, 0, len(forms))
	for _, c := range forms {
		out = append(out, roster.CompanionInput{
			Name:      strings.TrimSpace(c.Name),
			AgeGroup:  guests.ParseAgeGroup(c.AgeGroup),
			Allergies: c.Allergies,
		})
	}
	return out
}

type tableForm struct {
	Name     string `json:"name" validate:"required,max=80"`
	Capacity int    `json:"capacity" validate:"required,min=1,max=100"`
	Side     string `json:"side" validate:"omitempty,oneof=groom bride center sposo sposa centro"`
}

func (f tableForm) record(id int64) seating.TableRecord {
	rec := seating.TableRecord{ID: id, Name: strings.TrimSpace(f.Name), Capacity: f.Capacity}
	if f.Side != "" {
		rec.Side = seating.ParseSide(f.Side)
	}
	return rec
}

type assignForm struct {
	PersonID int64 `json:"person_id" validate:"required,gt=0"`
	Seat     *int  `json:"seat" validate:"omitempty,min=1"`
}
