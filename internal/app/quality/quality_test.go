package quality

import (
	"testing"

	"github.com/greencredits/greencredits/internal/domain"
)

func ptr(f float64) *float64 { return &f }

func TestScore(t *testing.T) {
	tests := []struct {
		name   string
		report domain.Report
		want   int
	}{
		{
			name:   "empty report",
			report: domain.Report{},
			want:   0,
		},
		{
			name: "everything present",
			report: domain.Report{
				PhotoURL:    "/uploads/a.jpg",
				Lat:         ptr(12.97),
				Lng:         ptr(77.59),
				Description: "Garbage pile 15", // 15 chars
				Address:     "MG Road 12",      // 10 chars
			},
			want: 100,
		},
		{
			name:   "photo only",
			report: domain.Report{PhotoURL: "/uploads/a.jpg"},
			want:   30,
		},
		{
			name:   "lat without lng",
			report: domain.Report{Lat: ptr(1)},
			want:   0,
		},
		{
			name:   "zero coordinates still count",
			report: domain.Report{Lat: ptr(0), Lng: ptr(0)},
			want:   25,
		},
		{
			name:   "description exactly ten chars",
			report: domain.Report{Description: "0123456789"},
			want:   0,
		},
		{
			name:   "short keyword description",
			report: domain.Report{Description: "LITTER"},
			want:   10,
		},
		{
			name:   "address exactly five chars",
			report: domain.Report{Address: "Main1"},
			want:   0,
		},
		{
			name:   "address six chars",
			report: domain.Report{Address: "Main12"},
			want:   15,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Score(tt.report); got != tt.want {
				t.Errorf("Score() = %d, want %d (breakdown %+v)", got, tt.want, Explain(tt.report))
			}
		})
	}
}

func TestScore_Deterministic(t *testing.T) {
	r := domain.Report{
		PhotoURL:    "/uploads/b.png",
		Description: "dirty riverbank near the bridge",
		Address:     "River Lane",
	}
	first := Score(r)
	for i := 0; i < 10; i++ {
		if got := Score(r); got != first {
			t.Fatalf("Score() changed between calls: %d then %d", first, got)
		}
	}
	if first < 0 || first > MaxScore {
		t.Errorf("Score() = %d out of [0,%d]", first, MaxScore)
	}
}

func TestMaxScore(t *testing.T) {
	if MaxScore != 100 {
		t.Errorf("MaxScore = %d, want 100", MaxScore)
	}
}

func TestExplain_Keywords(t *testing.T) {
	for _, kw := range Keywords {
		b := Explain(domain.Report{Description: "Some " + kw})
		if b.Keywords != WeightKeywords {
			t.Errorf("keyword %q not detected", kw)
		}
	}
}
