package clients

import (
	"testing"

	"licitahub/internal/config"
	"licitahub/internal/sources"
)

func boolPtr(v bool) *bool {
	return &v
}

func TestBuildRegistersConfiguredSources(t *testing.T) {
	t.Parallel()

	cfgs := []config.SourceConfig{
		{Name: "pncp", Driver: "pncp"},
		{Name: "bll", Driver: "portal", BaseURL: "https://portal.example.org/licitacoes", Enabled: boolPtr(false)},
	}

	m := sources.NewManager()
	if err := Build(cfgs, m, nil); err != nil {
		t.Fatalf("Build error: %v", err)
	}

	statuses := m.Status()
	if len(statuses) != 2 {
		t.Fatalf("expected 2 registered sources, got %d", len(statuses))
	}
	if !statuses[0].Enabled || statuses[1].Enabled {
		t.Fatalf("enabled flags should follow the descriptors: %+v", statuses)
	}

	eligible := m.EnabledSources()
	if len(eligible) != 1 || eligible[0].Name() != "pncp" {
		t.Fatalf("only pncp should be eligible, got %d", len(eligible))
	}
}

func TestBuildRejectsUnknownDriver(t *testing.T) {
	t.Parallel()

	err := Build([]config.SourceConfig{{Name: "x", Driver: "grpc"}}, sources.NewManager(), nil)
	if err == nil {
		t.Fatal("unknown driver must fail construction")
	}
}

func TestBuildRejectsPortalWithoutBaseURL(t *testing.T) {
	t.Parallel()

	err := Build([]config.SourceConfig{{Name: "x", Driver: "portal"}}, sources.NewManager(), nil)
	if err == nil {
		t.Fatal("portal driver without base url must fail construction")
	}
}
