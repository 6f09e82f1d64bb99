package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var langPattern = regexp.MustCompile(`^[A-Za-z]{2,3}([-_][A-Za-z0-9]{2,8})?$`)

// requiredKeys must be present in the fallback document.
var requiredKeys = []string{"chat_no_answer"}

type report struct {
	lang    string
	missing []string
	extra   []string
	empty   []string
}

func (r report) ok() bool {
	return len(r.missing) == 0 && len(r.empty) == 0
}

func main() {
	if len(os.Args) < 2 || len(os.Args) > 3 {
		fmt.Fprintf(os.Stderr, "usage: %s <locales-dir> [fallback-lang]\n", os.Args[0])
		os.Exit(2)
	}
	dir := os.Args[1]
	fallback := "en"
	if len(os.Args) == 3 {
		fallback = os.Args[2]
	}

	reports, err := check(dir, fallback)
	if err != nil {
		exitErr(err)
	}
	failed := false
	for _, r := range reports {
		if len(r.extra) > 0 {
			fmt.Printf("%s: keys not in %s: %s\n", r.lang, fallback, strings.Join(r.extra, ", "))
		}
		if r.ok() {
			continue
		}
		failed = true
		if len(r.missing) > 0 {
			fmt.Printf("%s: missing keys: %s\n", r.lang, strings.Join(r.missing, ", "))
		}
		if len(r.empty) > 0 {
			fmt.Printf("%s: empty values: %s\n", r.lang, strings.Join(r.empty, ", "))
		}
	}
	if failed {
		os.Exit(1)
	}
	fmt.Printf("Locale check passed (%d languages).\n", len(reports))
}

// check compares every <lang>.json in dir against the fallback document.
func check(dir, fallback string) ([]report, error) {
	base, err := loadLocale(filepath.Join(dir, fallback+".json"))
	if err != nil {
		return nil, fmt.Errorf("fallback %s: %w", fallback, err)
	}
	for _, key := range requiredKeys {
		if strings.TrimSpace(base[key]) == "" {
			return nil, fmt.Errorf("fallback %s: required key %q missing", fallback, key)
		}
	}

	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	reports := make([]report, 0, len(paths))
	for _, p := range paths {
		lang := strings.TrimSuffix(filepath.Base(p), ".json")
		if !langPattern.MatchString(lang) {
			return nil, fmt.Errorf("%s: file name is not a language code", filepath.Base(p))
		}
		doc, err := loadLocale(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", lang, err)
		}
		reports = append(reports, compare(lang, base, doc))
	}
	return reports, nil
}

func compare(lang string, base, doc map[string]string) report {
	r := report{lang: lang}
	for key := range base {
		v, ok := doc[key]
		switch {
		case !ok:
			r.missing = append(r.missing, key)
		case strings.TrimSpace(v) == "":
			r.empty = append(r.empty, key)
		}
	}
	for key := range doc {
		if _, ok := base[key]; !ok {
			r.extra = append(r.extra, key)
		}
	}
	sort.Strings(r.missing)
	sort.Strings(r.extra)
	sort.Strings(r.empty)
	return r
}

func loadLocale(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var doc map[string]string
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if doc == nil {
		return nil, errors.New("document is not a JSON object")
	}
	return doc, nil
}

func exitErr(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
