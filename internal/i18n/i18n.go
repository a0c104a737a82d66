package i18n

import (
	"fmt"
	"net/http"

	"golang.org/x/text/language"

	"github.com/AlexTLDR/seatplan/internal/guests"
)

type Language string

const (
	Italian Language = "it"
	English Language = "en"
)

var (
	supported = []Language{Italian, English}
	matcher   = language.NewMatcher([]language.Tag{language.Italian, language.English})
)

// Parse matches a BCP 47 tag ("it-IT", "en", ...) to a supported language.
func Parse(tag string, fallback Language) Language {
	t, err := language.Parse(tag)
	if err != nil {
		return fallback
	}
	return match(fallback, t)
}

func match(fallback Language, tags ...language.Tag) Language {
	if len(tags) == 0 {
		return fallback
	}
	_, idx, confidence := matcher.Match(tags...)
	if confidence == language.No {
		return fallback
	}
	return supported[idx]
}

// GetLanguageFromRequest extracts language from request (query param, cookie, then Accept-Language)
func GetLanguageFromRequest(r *http.Request, fallback Language) Language {
	// Check query parameter first
	if lang := r.URL.Query().Get("lang"); lang != "" {
		return Parse(lang, fallback)
	}

	// Check cookie
	if cookie, err := r.Cookie("lang"); err == nil && cookie.Value != "" {
		return Parse(cookie.Value, fallback)
	}

	if header := r.Header.Get("Accept-Language"); header != "" {
		tags, _, err := language.ParseAcceptLanguage(header)
		if err == nil {
			return match(fallback, tags...)
		}
	}

	return fallback
}

// CompanionsLabel returns the label used for cards that hold only companions.
func CompanionsLabel(lang Language) guests.Labeler {
	format := "Companions of %s"
	if lang == Italian {
		format = "Accompagnatori di %s"
	}
	return func(principalName string) string {
		return fmt.Sprintf(format, principalName)
	}
}

// Message keys for user-facing notices.
const (
	MsgNotFound          = "not_found"
	MsgInvalidRequest    = "invalid_request"
	MsgSaveFailed        = "save_failed"
	MsgStaleReference    = "stale_reference"
	MsgInvalidTransition = "invalid_transition"
	MsgTableFull         = "table_full"
	MsgNotConfirmed      = "not_confirmed"
	MsgSeatTaken         = "seat_taken"
	MsgInvalidPhone      = "invalid_phone"
	MsgCapacityTooLow    = "capacity_too_low"
	MsgInternal          = "internal"
	MsgUnauthorized      = "unauthorized"
	MsgForbidden         = "forbidden"
)

var messages = map[Language]map[string]string{
	English: {
		MsgNotFound:          "Not found",
		MsgInvalidRequest:    "Invalid request",
		MsgSaveFailed:        "Could not save the change, please try again",
		MsgStaleReference:    "This guest was changed elsewhere, the list has been refreshed",
		MsgInvalidTransition: "This change is not allowed for the guest's current status",
		MsgTableFull:         "The table is full",
		MsgNotConfirmed:      "Only confirmed guests can be seated",
		MsgSeatTaken:         "The seat is already taken",
		MsgInvalidPhone:      "Invalid phone number format",
		MsgCapacityTooLow:    "Capacity is lower than the guests already seated",
		MsgInternal:          "Internal server error",
		MsgUnauthorized:      "Please sign in",
		MsgForbidden:         "Your account is not allowed to manage the guest list",
	},
	Italian: {
		MsgNotFound:          "Non trovato",
		MsgInvalidRequest:    "Richiesta non valida",
		MsgSaveFailed:        "Impossibile salvare la modifica, riprova",
		MsgStaleReference:    "L'ospite è stato modificato altrove, la lista è stata aggiornata",
		MsgInvalidTransition: "Modifica non consentita per lo stato attuale dell'ospite",
		MsgTableFull:         "Il tavolo è pieno",
		MsgNotConfirmed:      "Solo gli ospiti confermati possono essere assegnati a un tavolo",
		MsgSeatTaken:         "Il posto è già occupato",
		MsgInvalidPhone:      "Numero di telefono non valido",
		MsgCapacityTooLow:    "La capacità è inferiore agli ospiti già assegnati",
		MsgInternal:          "Errore interno del server",
		MsgUnauthorized:      "Effettua l'accesso",
		MsgForbidden:         "Il tuo account non può gestire la lista degli ospiti",
	},
}

// Message returns the localised text for key, falling back to English.
func Message(lang Language, key string) string {
	if m, ok := messages[lang][key]; ok {
		return m
	}
	if m, ok := messages[English][key]; ok {
		return m
	}
	return key
}
