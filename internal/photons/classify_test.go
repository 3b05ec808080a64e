package photons

import "testing"

func TestNormalizeExtension(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: ".jpg", want: ".jpg"},
		{in: "JPG", want: ".jpg"},
		{in: " .Nef ", want: ".nef"},
		{in: "tar.gz", want: ".tar.gz"},
		{in: "", wantErr: true},
		{in: ".", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeExtension(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizeExtension(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("NormalizeExtension(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		want Classification
	}{
		{"a.jpg", Eligible},
		{"A.JPG", Eligible},
		{"holiday.photo.Jpg", Eligible},
		{"a.jpeg", Ignored},
		{"a.jpg.xmp", Ignored},
		{"jpg", Ignored},
		{"", Ignored},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.name, ".jpg"); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestOutcome_String(t *testing.T) {
	var s ImportSummary
	for _, o := range []Outcome{OutcomeIgnored, OutcomeSkipped, OutcomeImported, OutcomePlanned, OutcomeFailed} {
		if o.String() == "unknown" {
			t.Errorf("Outcome(%d) has no name", o)
		}
		s.add(o)
	}
	if s.Visited() != 5 {
		t.Errorf("Visited() = %d, want 5", s.Visited())
	}
}
