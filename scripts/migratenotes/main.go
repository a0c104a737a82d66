// Command migratenotes rewrites every person's note column in the structured
// format and normalizes principal phone numbers to E.164.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/AlexTLDR/seatplan/internal/database"
	"github.com/AlexTLDR/seatplan/internal/guests"
	"github.com/AlexTLDR/seatplan/internal/notes"
	"github.com/AlexTLDR/seatplan/internal/utils"
)

func main() {
	_ = godotenv.Load()

	driver := pflag.String("driver", envOr("DATABASE_DRIVER", database.DriverPostgres), "database driver (postgres|sqlite3)")
	dsn := pflag.String("dsn", os.Getenv("DATABASE_URL"), "database connection string")
	region := pflag.String("region", envOr("PHONE_REGION", utils.DefaultRegion), "region for phone numbers without a country code")
	dryRun := pflag.Bool("dry-run", false, "report changes without writing them")
	pflag.Parse()

	if *dsn == "" {
		log.Fatal("--dsn or DATABASE_URL is required")
	}

	ctx := context.Background()
	db, err := database.New(ctx, *driver, *dsn)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	rows, err := db.ListPersonRows(ctx)
	if err != nil {
		log.Fatalf("Failed to list persons: %v", err)
	}

	fmt.Printf("Found %d persons to process\n", len(rows))

	byFormat := make(map[notes.Format]int)
	notesUpdated, phonesUpdated, failed := 0, 0, 0
	for _, row := range rows {
		note, format := notes.Parse(row.Note.String)
		byFormat[format]++

		p := row.Person()
		phoneChanged := false
		if p.Phone != "" {
			normalized, err := utils.NormalizePhoneNumber(p.Phone, *region)
			if err != nil {
				log.Printf("Failed to normalize phone %q (ID: %d): %v", p.Phone, p.ID, err)
			} else if normalized != p.Phone {
				fmt.Printf("Phone ID %d: %q -> %q\n", p.ID, p.Phone, normalized)
				p.Phone = normalized
				phoneChanged = true
			}
		}

		noteChanged := format == notes.FormatLegacy || format == notes.FormatText
		if noteChanged {
			fmt.Printf("Note ID %d (%s): %q -> %q\n", p.ID, format, row.Note.String, notes.Encode(note))
		}

		if *dryRun || (!phoneChanged && !noteChanged) {
			continue
		}

		// A full person update rewrites the note as well.
		if phoneChanged {
			err = db.UpdatePersons(ctx, []guests.Person{p})
		} else {
			err = db.UpdateNote(ctx, p.ID, notes.Encode(note))
		}
		if err != nil {
			log.Printf("Failed to update person %d: %v", p.ID, err)
			failed++
			continue
		}
		if phoneChanged {
			phonesUpdated++
		}
		if noteChanged {
			notesUpdated++
		}
	}

	fmt.Printf("\nSummary:\n")
	fmt.Printf("  Total: %d\n", len(rows))
	for _, f := range []notes.Format{notes.FormatEmpty, notes.FormatStructured, notes.FormatLegacy, notes.FormatText} {
		fmt.Printf("  %s notes: %d\n", f, byFormat[f])
	}
	fmt.Printf("  Notes updated: %d\n", notesUpdated)
	fmt.Printf("  Phones updated: %d\n", phonesUpdated)
	fmt.Printf("  Failed: %d\n", failed)
	if *dryRun {
		fmt.Println("  (dry run, nothing written)")
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
