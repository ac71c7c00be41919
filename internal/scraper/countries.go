package scraper

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Country pairs an IMDb country code with the display name stored on rankings.
type Country struct {
	Code string
	Name string
}

// DefaultCountries is written to the country code file when it does not exist.
var DefaultCountries = map[string]string{
	"KR": "South Korea",
	"US": "United States",
	"GB": "United Kingdom",
	"AU": "Australia",
	"BR": "Brazil",
	"ZA": "South Africa",
}

// LoadCountries reads a `{"CODE": "Name"}` JSON file, creating it with
// DefaultCountries first when it is missing. Countries are sorted by code.
func LoadCountries(path string) ([]Country, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := writeDefaultCountries(path); err != nil {
			return nil, err
		}
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read country codes: %w", err)
	}
	var codes map[string]string
	if err := json.Unmarshal(data, &codes); err != nil {
		return nil, fmt.Errorf("decode country codes %s: %w", path, err)
	}
	return countryList(codes), nil
}

// FilterCountries keeps the countries whose code appears in codes (case-insensitive).
// An empty codes list keeps everything.
func FilterCountries(countries []Country, codes []string) []Country {
	if len(codes) == 0 {
		return countries
	}
	want := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		want[strings.ToUpper(strings.TrimSpace(c))] = struct{}{}
	}
	out := make([]Country, 0, len(codes))
	for _, c := range countries {
		if _, ok := want[strings.ToUpper(c.Code)]; ok {
			out = append(out, c)
		}
	}
	return out
}

func writeDefaultCountries(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create country code dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(DefaultCountries, "", "    ")
	if err != nil {
		return fmt.Errorf("encode default country codes: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write default country codes: %w", err)
	}
	return nil
}

func countryList(codes map[string]string) []Country {
	out := make([]Country, 0, len(codes))
	for code, name := range codes {
		code, name = strings.TrimSpace(code), strings.TrimSpace(name)
		if code == "" || name == "" {
			continue
		}
		out = append(out, Country{Code: code, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
