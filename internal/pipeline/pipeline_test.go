package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tripstitch/tripstitch/internal/extract"
	"github.com/tripstitch/tripstitch/internal/itinerary"
	"github.com/tripstitch/tripstitch/internal/report"
)

const itineraryCSV = `departure_country,departure_city,departure_date,departure_time,arrival_country,arrival_city,arrival_date,arrival_time,notes,source_file
GB,London,2023-01-10,09:00,PH,Manila,2023-01-11,14:00,Flight,Original
MY,Kuala Lumpur,2023-02-09,08:00,TH,Bangkok,2023-02-09,11:00,Flight,Original
`

const evidenceEML = `From: AirAsia <noreply@airasia.example>
Subject: Flight Confirmation Manila to Kuala Lumpur
Date: Mon, 30 Jan 2023 08:30:00 +0000
Content-Type: text/plain

Your flight from Manila to Kuala Lumpur departs 2023-02-06.
`

type scriptedClient struct {
	response string
}

func (c *scriptedClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.response, nil
}

func fixedNow() time.Time {
	return time.Date(2023, 9, 17, 21, 54, 0, 0, time.UTC)
}

func setup(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "trips.csv")
	if err := os.WriteFile(csvPath, []byte(itineraryCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	emailDir := filepath.Join(dir, "emails")
	if err := os.Mkdir(emailDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(emailDir, "evidence.eml"), []byte(evidenceEML), 0o644); err != nil {
		t.Fatal(err)
	}
	return csvPath, emailDir
}

func TestRunFillsGap(t *testing.T) {
	csvPath, emailDir := setup(t)

	client := &scriptedClient{response: `[{
		"departure_country":"PH","departure_city":"Manila",
		"departure_date":"2023-02-06","departure_time":"14:30",
		"arrival_country":"MY","arrival_city":"Kuala Lumpur",
		"arrival_date":"2023-02-06","arrival_time":"18:00",
		"notes":"Flight","source_file":"evidence.eml"}]`}

	batcher := extract.DefaultBatcherConfig()
	batcher.InterBatchDelay = 0

	rep, err := Run(context.Background(), Options{
		CSVPath:        csvPath,
		EmailDir:       emailDir,
		VocabPath:      filepath.Join(t.TempDir(), "absent.txt"),
		Client:         client,
		Batcher:        batcher,
		LookbackMonths: 12,
		LookaheadDays:  7,
		Now:            fixedNow,
	})
	if err != nil {
		t.Fatal(err)
	}

	if rep.LegsLoaded != 2 {
		t.Errorf("LegsLoaded = %d", rep.LegsLoaded)
	}
	if rep.EmailsScanned != 1 || rep.EmailsKeyword != 1 || rep.EmailsTemporal != 1 {
		t.Errorf("email counters = %d/%d/%d", rep.EmailsScanned, rep.EmailsKeyword, rep.EmailsTemporal)
	}
	if len(rep.Gaps) != 1 {
		t.Fatalf("got %d gap reports", len(rep.Gaps))
	}
	if rep.Gaps[0].Outcome != report.OutcomeFilled {
		t.Errorf("outcome = %s", rep.Gaps[0].Outcome)
	}
	if len(rep.Gaps[0].Sources) != 1 || rep.Gaps[0].Sources[0] != "evidence.eml" {
		t.Errorf("sources = %v", rep.Gaps[0].Sources)
	}

	if rep.OutputFile == "" {
		t.Fatal("no output file")
	}
	if filepath.Base(rep.OutputFile) != "all-travel-20230917-2154.csv" {
		t.Errorf("OutputFile = %q", rep.OutputFile)
	}

	store, _, err := itinerary.Load(rep.OutputFile)
	if err != nil {
		t.Fatal(err)
	}
	if store.Len() != 3 {
		t.Errorf("saved itinerary has %d legs, want 3", store.Len())
	}
}

func TestRunNoEvidence(t *testing.T) {
	csvPath, emailDir := setup(t)

	client := &scriptedClient{response: "[]"}
	batcher := extract.DefaultBatcherConfig()
	batcher.InterBatchDelay = 0

	rep, err := Run(context.Background(), Options{
		CSVPath:        csvPath,
		EmailDir:       emailDir,
		VocabPath:      filepath.Join(t.TempDir(), "absent.txt"),
		Client:         client,
		Batcher:        batcher,
		LookbackMonths: 12,
		LookaheadDays:  7,
		Now:            fixedNow,
	})
	if err != nil {
		t.Fatal(err)
	}
	if rep.Gaps[0].Outcome != report.OutcomeNoEvidence {
		t.Errorf("outcome = %s", rep.Gaps[0].Outcome)
	}
	// Original legs still saved untouched.
	store, _, err := itinerary.Load(rep.OutputFile)
	if err != nil {
		t.Fatal(err)
	}
	if store.Len() != 2 {
		t.Errorf("saved itinerary has %d legs, want 2", store.Len())
	}
}

func TestGapsOnly(t *testing.T) {
	csvPath, _ := setup(t)

	rep, err := GapsOnly(csvPath, fixedNow)
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Gaps) != 1 {
		t.Fatalf("got %d gaps", len(rep.Gaps))
	}
	if rep.Gaps[0].Gap.PriorArrivalCity != "Manila" {
		t.Errorf("gap = %+v", rep.Gaps[0].Gap)
	}
	if rep.Gaps[0].Outcome != report.OutcomeOpen {
		t.Errorf("Outcome = %q, want %q (no evidence search ran)", rep.Gaps[0].Outcome, report.OutcomeOpen)
	}
	if rep.OutputFile != "" {
		t.Error("gaps-only run must not write output")
	}
}

func TestRunMissingEmailDir(t *testing.T) {
	csvPath, _ := setup(t)

	_, err := Run(context.Background(), Options{
		CSVPath:  csvPath,
		EmailDir: filepath.Join(t.TempDir(), "absent"),
		Client:   &scriptedClient{response: "[]"},
		Batcher:  extract.DefaultBatcherConfig(),
		Now:      fixedNow,
	})
	if err == nil {
		t.Fatal("expected error for missing email directory")
	}
}
