// Command seed loads a YAML guest list into the database, one invitation
// unit per entry.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/AlexTLDR/seatplan/internal/database"
	"github.com/AlexTLDR/seatplan/internal/guests"
	"github.com/AlexTLDR/seatplan/internal/utils"
)

type companionEntry struct {
	Name      string `yaml:"name"`
	AgeGroup  string `yaml:"age_group"`
	Allergies string `yaml:"allergies"`
	Confirmed bool   `yaml:"confirmed"`
}

type guestEntry struct {
	Name       string           `yaml:"name"`
	Category   string           `yaml:"category"`
	AgeGroup   string           `yaml:"age_group"`
	Phone      string           `yaml:"phone"`
	Allergies  string           `yaml:"allergies"`
	Confirmed  bool             `yaml:"confirmed"`
	Companions []companionEntry `yaml:"companions"`
}

type guestFile struct {
	Guests []guestEntry `yaml:"guests"`
}

func main() {
	_ = godotenv.Load()

	driver := pflag.String("driver", envOr("DATABASE_DRIVER", database.DriverPostgres), "database driver (postgres|sqlite3)")
	dsn := pflag.String("dsn", os.Getenv("DATABASE_URL"), "database connection string")
	file := pflag.StringP("file", "f", "scripts/seed/guests.example.yaml", "YAML guest list")
	region := pflag.String("region", envOr("PHONE_REGION", utils.DefaultRegion), "region for phone numbers without a country code")
	migrate := pflag.Bool("migrate", true, "apply migrations before seeding")
	pflag.Parse()

	if *dsn == "" {
		log.Fatal("--dsn or DATABASE_URL is required")
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", *file, err)
	}

	var list guestFile
	if err := yaml.Unmarshal(data, &list); err != nil {
		log.Fatalf("Failed to parse %s: %v", *file, err)
	}

	ctx := context.Background()
	db, err := database.New(ctx, *driver, *dsn)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if *migrate {
		if err := db.Migrate(); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	created, people := 0, 0
	for i, g := range list.Guests {
		principal, companions, err := g.persons(*region)
		if err != nil {
			log.Printf("Skipping entry %d: %v", i+1, err)
			continue
		}

		unit, err := db.CreateUnit(ctx, principal, companions)
		if err != nil {
			log.Fatalf("Failed to create unit for %q: %v", g.Name, err)
		}
		created++
		people += len(unit.Members())
		fmt.Printf("Created unit %d: %s (+%d)\n", unit.ID, unit.Principal.Name, len(unit.Companions))
	}

	fmt.Printf("\nSeeded %d units, %d persons\n", created, people)
}

func (g guestEntry) persons(region string) (guests.Person, []guests.Person, error) {
	name := strings.TrimSpace(g.Name)
	if name == "" {
		return guests.Person{}, nil, fmt.Errorf("name is required")
	}

	category := guests.ParseCategory(g.Category)
	principal := guests.Person{
		Name:      name,
		Category:  category,
		AgeGroup:  guests.ParseAgeGroup(g.AgeGroup),
		Allergies: g.Allergies,
		Confirmed: g.Confirmed,
	}
	if g.Phone != "" {
		phone, err := utils.NormalizePhoneNumber(g.Phone, region)
		if err != nil {
			return guests.Person{}, nil, fmt.Errorf("invalid phone %q: %w", g.Phone, err)
		}
		principal.Phone = phone
	}

	companions := make([]guests.Person, 0, len(g.Companions))
	for _, c := range g.Companions {
		if strings.TrimSpace(c.Name) == "" {
			return guests.Person{}, nil, fmt.Errorf("companion of %s has no name", name)
		}
		companions = append(companions, guests.Person{
			Name:      strings.TrimSpace(c.Name),
			Category:  category,
			AgeGroup:  guests.ParseAgeGroup(c.AgeGroup),
			Allergies: c.Allergies,
			Confirmed: c.Confirmed,
		})
	}
	return principal, companions, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
