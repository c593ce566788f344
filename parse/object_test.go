package parse

import (
	"testing"
	"time"
)

func TestParseObjectPage_Fixture(t *testing.T) {
	html := loadFixture(t, "object_page.html")
	payload, ok := ExtractStateJSON(html)
	if !ok {
		t.Fatal("state block not found in fixture")
	}

	d, err := ParseObjectPage(payload)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if d.Code == nil || *d.Code != 2750001 {
		t.Fatalf("expected code 2750001, got %v", d.Code)
	}
	if d.Title == nil || *d.Title != "3-комнатная квартира на Немиге" {
		t.Fatalf("unexpected title: %v", d.Title)
	}
	if d.AreaLiving == nil || *d.AreaLiving != 48.2 {
		t.Fatalf("expected areaLiving 48.2 from string, got %v", d.AreaLiving)
	}
	if d.OverhaulYear == nil || *d.OverhaulYear != 2019 {
		t.Fatalf("expected overhaulYear 2019 from string, got %v", d.OverhaulYear)
	}
	if d.Furniture == nil || !*d.Furniture {
		t.Fatalf("expected furniture true, got %v", d.Furniture)
	}
	if d.Paid == nil || !*d.Paid {
		t.Fatalf(`expected paid true from literal "true", got %v`, d.Paid)
	}

	if d.Longitude == nil || *d.Longitude != 27.5544 {
		t.Fatalf("expected longitude first, got %v", d.Longitude)
	}
	if d.Latitude == nil || *d.Latitude != 53.9023 {
		t.Fatalf("expected latitude second, got %v", d.Latitude)
	}

	if d.PriceUSD == nil || *d.PriceUSD != 700 {
		t.Fatalf("expected USD 700, got %v", d.PriceUSD)
	}
	if d.PriceBYN == nil || *d.PriceBYN != 2238.6 {
		t.Fatalf("expected BYN 2238.6 from string amount, got %v", d.PriceBYN)
	}
	if d.PriceEUR == nil || *d.PriceEUR != 645.5 {
		t.Fatalf("expected EUR 645.5, got %v", d.PriceEUR)
	}
	if d.PriceRUB == nil || *d.PriceRUB != 63900 {
		t.Fatalf("expected RUB 63900, got %v", d.PriceRUB)
	}

	// Slides take precedence over images; blank slide dropped.
	if len(d.Images) != 2 || d.Images[0] != "https://img.example/2750001/s1.jpg" {
		t.Fatalf("expected slides to win, got %v", d.Images)
	}
	if d.ImageURL == nil || *d.ImageURL != "https://img.example/2750001/s1.jpg" {
		t.Fatalf("expected primary image from slides, got %v", d.ImageURL)
	}

	// Duplicates in appliances are preserved as given.
	if len(d.Appliances) != 3 {
		t.Fatalf("expected 3 appliances incl. duplicate, got %v", d.Appliances)
	}

	wantRaise := time.Date(2025, 6, 30, 21, 0, 0, 0, time.UTC)
	if d.RaiseDate == nil || !d.RaiseDate.Equal(wantRaise) {
		t.Fatalf("expected raiseDate %v, got %v", wantRaise, d.RaiseDate)
	}
}

func TestParseObjectPage_ImagesFallback(t *testing.T) {
	payload := `{"props":{"pageProps":{"initialState":{"objectView":{"object":{
		"code":5,"title":"t","slides":[],"images":["https://img.example/5/a.jpg"]
	}}}}}}`

	d, err := ParseObjectPage(payload)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(d.Images) != 1 || d.Images[0] != "https://img.example/5/a.jpg" {
		t.Fatalf("expected fallback to images, got %v", d.Images)
	}
}

func TestParseObjectPage_FallbackCurrency(t *testing.T) {
	payload := `{"props":{"pageProps":{"initialState":{"objectView":{"object":{
		"code":6,"title":"t","price":"410.00","priceCurrency":978
	}}}}}}`

	d, err := ParseObjectPage(payload)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if d.PriceEUR == nil || *d.PriceEUR != 410 {
		t.Fatalf("expected EUR 410 via fallback, got %v", d.PriceEUR)
	}
	if d.PriceUSD != nil {
		t.Fatalf("expected no USD price, got %v", *d.PriceUSD)
	}
}

func TestParseObjectPage_BadGeo(t *testing.T) {
	payload := `{"props":{"pageProps":{"initialState":{"objectView":{"object":{
		"code":7,"title":"t","location":["27.5",53.9]
	}}}}}}`

	d, err := ParseObjectPage(payload)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if d.Longitude != nil || d.Latitude != nil {
		t.Fatal("expected both coordinates absent for a malformed geo array")
	}
}

func TestParseObjectPage_MissingObjectNode(t *testing.T) {
	if _, err := ParseObjectPage(`{"props":{"pageProps":{"initialState":{}}}}`); err == nil {
		t.Fatal("expected error for missing object node")
	}
}

func TestParseObjectPage_NoCode(t *testing.T) {
	payload := `{"props":{"pageProps":{"initialState":{"objectView":{"object":{"title":"t"}}}}}}`
	d, err := ParseObjectPage(payload)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if d.Code != nil {
		t.Fatalf("expected no code, got %v", *d.Code)
	}
}
