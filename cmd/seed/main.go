// Command seed fills a running server with demo doctors and patients through the public API,
// so codes, locks and events go through the same path as real registrations.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"clinic-queue/internal/delivery/dto"
	"clinic-queue/pkg/queueclient"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var motives = []string{"informacion", "consulta", "control", "resultados", "urgencia"}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "server base URL")
	username := flag.String("user", "admin", "admin username")
	password := flag.String("password", os.Getenv("SEED_ADMIN_PASSWORD"), "admin password")
	doctorCount := flag.Int("doctors", 4, "doctors to ensure")
	patientCount := flag.Int("patients", 40, "patients to register")
	reissueRate := flag.Float64("reissue", 0.15, "share of registrations that re-register an earlier patient")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)

	if *password == "" {
		log.Fatal("admin password is required (-password or SEED_ADMIN_PASSWORD)")
	}

	gofakeit.Seed(time.Now().UnixNano())

	ctx := context.Background()
	client := queueclient.New(queueclient.Config{BaseURL: *baseURL}, log)
	if _, err := client.Login(ctx, *username, *password); err != nil {
		log.Fatalf("Failed to login: %v", err)
	}

	doctors, err := ensureDoctors(ctx, client, log, *doctorCount)
	if err != nil {
		log.Fatalf("Failed to seed doctors: %v", err)
	}

	issued, reissued, err := registerPatients(ctx, client, log, doctors, *patientCount, *reissueRate)
	if err != nil {
		log.Fatalf("Failed to seed patients: %v", err)
	}

	log.WithFields(logrus.Fields{
		"doctors":  len(doctors),
		"issued":   issued,
		"reissued": reissued,
	}).Info("Seed complete")
}

func ensureDoctors(ctx context.Context, client *queueclient.Client, log *logrus.Logger, count int) ([]dto.DoctorResponse, error) {
	existing, err := client.ListDoctors(ctx)
	if err != nil {
		return nil, err
	}
	doctors := existing.Doctors

	for len(doctors) < count {
		tipo := "consulta"
		if gofakeit.Number(0, 3) == 0 {
			tipo = "informacion"
		}
		doctor, err := client.CreateDoctor(ctx, &dto.CreateDoctorRequest{
			FullName: "Dr. " + gofakeit.FirstName() + " " + gofakeit.LastName(),
			Type:     tipo,
		})
		if err != nil {
			return nil, err
		}
		log.WithFields(logrus.Fields{"doctor": doctor.FullName, "prefix": doctor.CodePrefix}).Info("Doctor created")
		doctors = append(doctors, *doctor)
	}

	return doctors, nil
}

func registerPatients(ctx context.Context, client *queueclient.Client, log *logrus.Logger, doctors []dto.DoctorResponse, count int, reissueRate float64) (int, int, error) {
	if len(doctors) == 0 {
		return 0, 0, nil
	}

	var registered []dto.RegisterTicketRequest
	issued, reissued := 0, 0

	for i := 0; i < count; i++ {
		var req dto.RegisterTicketRequest
		if len(registered) > 0 && gofakeit.Float64Range(0, 1) < reissueRate {
			req = registered[gofakeit.Number(0, len(registered)-1)]
		} else {
			doctorID := doctors[gofakeit.Number(0, len(doctors)-1)].ID
			req = dto.RegisterTicketRequest{
				Name:     gofakeit.FirstName(),
				LastName: gofakeit.LastName(),
				Document: gofakeit.Numerify("########"),
				DoctorID: uuidPtr(doctorID),
				Motive:   gofakeit.RandomString(motives),
			}
			registered = append(registered, req)
		}

		res, err := client.RegisterTicket(ctx, &req)
		if err != nil {
			return issued, reissued, err
		}
		if res.PreviousCode != nil {
			reissued++
		} else {
			issued++
		}
		log.WithFields(logrus.Fields{"code": res.Code, "tipo": res.Type, "patient": res.Patient.Name}).Debug("Patient registered")
	}

	return issued, reissued, nil
}

func uuidPtr(id uuid.UUID) *uuid.UUID {
	return &id
}
