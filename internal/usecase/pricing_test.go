package usecase

import "testing"

func TestResolvePricingPerThousand(t *testing.T) {
	p := ResolvePricing(5000, "1000 Instagram Followers per 1k", 100)
	if p.Multiplier != 1000 {
		t.Fatalf("expected multiplier 1000, got %v", p.Multiplier)
	}
	if p.PricePerUnit != 5 {
		t.Fatalf("expected per unit 5, got %v", p.PricePerUnit)
	}
	if p.Total != 500 {
		t.Fatalf("expected total 500, got %v", p.Total)
	}
}

func TestResolvePricingPerUnit(t *testing.T) {
	p := ResolvePricing(50, "Custom Comment", 10)
	if p.Multiplier != 1 {
		t.Fatalf("expected multiplier 1, got %v", p.Multiplier)
	}
	if p.PricePerUnit != 50 {
		t.Fatalf("expected per unit 50, got %v", p.PricePerUnit)
	}
	if p.Total != 500 {
		t.Fatalf("expected total 500, got %v", p.Total)
	}
}

func TestResolvePricingFollowerFallback(t *testing.T) {
	// no explicit marker but expensive follower package
	p := ResolvePricing(4500, "Instagram Followers HQ", 200)
	if p.Multiplier != 1000 {
		t.Fatalf("expected multiplier 1000, got %v", p.Multiplier)
	}
	if p.PricePerUnit != 4.5 {
		t.Fatalf("expected per unit 4.5, got %v", p.PricePerUnit)
	}

	// cheap follower package stays per unit
	p = ResolvePricing(800, "Followers Boost", 10)
	if p.Multiplier != 1 {
		t.Fatalf("expected multiplier 1, got %v", p.Multiplier)
	}
}

func TestResolvePricingMarkerVariants(t *testing.T) {
	for _, name := range []string{"Views /1k", "Likes per 1000", "Promo 1k pack", "Deal 1000"} {
		p := ResolvePricing(2000, name, 1)
		if p.Multiplier != 1000 {
			t.Fatalf("%q: expected multiplier 1000, got %v", name, p.Multiplier)
		}
	}
}

func TestResolvePricingNoDrift(t *testing.T) {
	p := ResolvePricing(7.77, "Likes", 3)
	if p.Total != p.PricePerUnit*3 {
		t.Fatalf("total drifted: %v vs %v", p.Total, p.PricePerUnit*3)
	}
}

func TestFormatAmount(t *testing.T) {
	if got := FormatAmount(5.005); got != "5.00" && got != "5.01" {
		t.Fatalf("unexpected rounding: %s", got)
	}
	if got := FormatAmount(1234.5); got != "1234.50" {
		t.Fatalf("unexpected format: %s", got)
	}
}
