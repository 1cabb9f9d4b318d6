package commission

import (
	"testing"

	"referral-earnings-go/internal/models"

	"github.com/shopspring/decimal"
)

func TestRate(t *testing.T) {
	tests := []struct {
		level int
		want  string
	}{
		{0, "0"},
		{1, "0.05"},
		{2, "0.01"},
		{3, "0"},
	}
	for _, tt := range tests {
		if got := Rate(tt.level); !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("Rate(%d) = %s, want %s", tt.level, got, tt.want)
		}
	}
}

func TestCompute(t *testing.T) {
	b := models.Account{Id: "b"}
	a := models.Account{Id: "a"}
	z := models.Account{Id: "z"}

	tests := []struct {
		name       string
		amount     string
		upline     []models.Account
		wantLevels []int
		wantAmts   []string
	}{
		{"no upline", "2000", nil, nil, nil},
		{"one level", "5000", []models.Account{b}, []int{1}, []string{"250"}},
		{"two levels", "2000", []models.Account{b, a}, []int{1, 2}, []string{"100", "20"}},
		{"extra upline ignored", "2000", []models.Account{b, a, z}, []int{1, 2}, []string{"100", "20"}},
		{"fractional", "1000.01", []models.Account{b, a}, []int{1, 2}, []string{"50.0005", "10.0001"}},
		{"zero amount credits nothing", "0", []models.Account{b, a}, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(decimal.RequireFromString(tt.amount), tt.upline)
			if len(got) != len(tt.wantLevels) {
				t.Fatalf("expected %d commissions, got %d", len(tt.wantLevels), len(got))
			}
			for i, c := range got {
				if c.Level != tt.wantLevels[i] {
					t.Errorf("commission %d level = %d, want %d", i, c.Level, tt.wantLevels[i])
				}
				if !c.Amount.Equal(decimal.RequireFromString(tt.wantAmts[i])) {
					t.Errorf("commission %d amount = %s, want %s", i, c.Amount, tt.wantAmts[i])
				}
				if c.Beneficiary.Id != tt.upline[i].Id {
					t.Errorf("commission %d beneficiary = %s, want %s", i, c.Beneficiary.Id, tt.upline[i].Id)
				}
			}
		})
	}
}

func TestCompute_Deterministic(t *testing.T) {
	upline := []models.Account{{Id: "b"}, {Id: "a"}}
	amount := decimal.RequireFromString("1234.56")

	first := Compute(amount, upline)
	second := Compute(amount, upline)
	for i := range first {
		if !first[i].Amount.Equal(second[i].Amount) || first[i].Level != second[i].Level {
			t.Fatalf("expected identical output, got %+v and %+v", first[i], second[i])
		}
	}
}
