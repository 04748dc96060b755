package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/HerbHall/linkstat/internal/config"
	"github.com/HerbHall/linkstat/internal/services"
	"github.com/HerbHall/linkstat/pkg/models"
)

// seedFile is the layout of a fleet seed file.
type seedFile struct {
	Devices     []seedDevice     `yaml:"devices"`
	Subscribers []seedSubscriber `yaml:"subscribers"`
}

type seedDevice struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Address  string `yaml:"address"`
	Port     int    `yaml:"port"`
	Kind     string `yaml:"kind"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Enabled  *bool  `yaml:"enabled"`
}

type seedSubscriber struct {
	ID        string `yaml:"id"`
	LoginName string `yaml:"login"`
	Status    string `yaml:"status"`
	DeviceID  string `yaml:"device"`
}

type seedReport struct {
	DevicesCreated     int
	DevicesSkipped     int
	SubscribersCreated int
	SubscribersSkipped int
}

type deviceCreator interface {
	Create(ctx context.Context, device *models.Device) error
}

type subscriberCreator interface {
	Create(ctx context.Context, sub *models.Subscriber) error
}

func parseSeed(r io.Reader) (*seedFile, error) {
	var f seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	for i, d := range f.Devices {
		if d.Name == "" || d.Address == "" {
			return nil, fmt.Errorf("device %d: name and address are required", i)
		}
		switch models.DeviceKind(d.Kind) {
		case "", models.DeviceKindRouterOSREST, models.DeviceKindRouterOSSNMP:
		default:
			return nil, fmt.Errorf("device %q: unknown kind %q", d.Name, d.Kind)
		}
		if d.Port < 0 || d.Port > 65535 {
			return nil, fmt.Errorf("device %q: port %d out of range", d.Name, d.Port)
		}
	}
	for i, s := range f.Subscribers {
		if s.LoginName == "" {
			return nil, fmt.Errorf("subscriber %d: login is required", i)
		}
		switch models.SubscriberStatus(s.Status) {
		case "", models.SubscriberActive, models.SubscriberInactive,
			models.SubscriberSuspended, models.SubscriberPending:
		default:
			return nil, fmt.Errorf("subscriber %q: unknown status %q", s.LoginName, s.Status)
		}
	}
	return &f, nil
}

// applySeed inserts every entry, skipping IDs that already exist.
func applySeed(ctx context.Context, f *seedFile, devices deviceCreator, subscribers subscriberCreator) (seedReport, error) {
	var rep seedReport
	for _, sd := range f.Devices {
		enabled := true
		if sd.Enabled != nil {
			enabled = *sd.Enabled
		}
		d := models.Device{
			ID:       sd.ID,
			Name:     sd.Name,
			Address:  sd.Address,
			Port:     sd.Port,
			Kind:     models.DeviceKind(sd.Kind),
			Username: sd.Username,
			Password: sd.Password,
			Enabled:  enabled,
		}
		switch err := devices.Create(ctx, &d); {
		case errors.Is(err, services.ErrAlreadyExists):
			rep.DevicesSkipped++
		case err != nil:
			return rep, fmt.Errorf("device %q: %w", sd.Name, err)
		default:
			rep.DevicesCreated++
		}
	}

	for _, ss := range f.Subscribers {
		s := models.Subscriber{
			ID:        ss.ID,
			LoginName: ss.LoginName,
			Status:    models.SubscriberStatus(ss.Status),
			DeviceID:  ss.DeviceID,
		}
		switch err := subscribers.Create(ctx, &s); {
		case errors.Is(err, services.ErrAlreadyExists):
			rep.SubscribersSkipped++
		case err != nil:
			return rep, fmt.Errorf("subscriber %q: %w", ss.LoginName, err)
		default:
			rep.SubscribersCreated++
		}
	}
	return rep, nil
}

func runSeed(args []string) {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	file := fs.String("file", "", "fleet seed file (required)")
	configPath := fs.String("config", "", "path to configuration file")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *file == "" {
		fmt.Fprintln(os.Stderr, "error: -file is required")
		fs.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	in, err := os.Open(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}
	defer in.Close()

	f, err := parseSeed(in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	st, err := openRegistry(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	rep, err := applySeed(ctx, f,
		services.NewSQLiteDeviceRepository(st.DB()),
		services.NewSQLiteSubscriberRepository(st.DB()))
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Seeded %s: %d devices (%d existing), %d subscribers (%d existing)\n",
		cfg.GetString("database.path"),
		rep.DevicesCreated, rep.DevicesSkipped,
		rep.SubscribersCreated, rep.SubscribersSkipped)
}
