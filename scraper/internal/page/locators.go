package page

import "github.com/hazyhaar/ifscdir/branch"

// The site lays its four dropdowns out as consecutive forms inside the
// left column of the main table.
const columnPath = "body > table.main > tbody > tr:nth-child(9) > td.main > table > tbody > tr > td:nth-child(1) > div"

// Locators names the page elements the engine touches.
type Locators struct {
	Bank     string   `yaml:"bank"`
	State    string   `yaml:"state"`
	District string   `yaml:"district"`
	Branch   string   `yaml:"branch"`
	// Containers are tried in order when reading a branch detail block.
	Containers []string `yaml:"containers"`
}

// DefaultLocators returns the structural locators of the directory site.
func DefaultLocators() Locators {
	return Locators{
		Bank:     columnPath + " > form:nth-child(3) > div > select",
		State:    columnPath + " > form:nth-child(4) > div > select",
		District: columnPath + " > form:nth-child(5) > div > select",
		Branch:   columnPath + " > form:nth-child(6) > div > select",
		Containers: []string{
			columnPath,
			".main table tbody tr td div",
			"table.main td.main div",
			"body table tbody tr td div",
		},
	}
}

// For returns the select locator of level l.
func (l Locators) For(level branch.Level) string {
	switch level {
	case branch.Bank:
		return l.Bank
	case branch.State:
		return l.State
	case branch.District:
		return l.District
	default:
		return l.Branch
	}
}

// LevelOf maps a select locator back to its level.
func (l Locators) LevelOf(locator string) (branch.Level, bool) {
	for _, lv := range branch.Levels {
		if l.For(lv) == locator {
			return lv, true
		}
	}
	return 0, false
}

// WithDefaults fills empty fields from DefaultLocators.
func (l Locators) WithDefaults() Locators {
	d := DefaultLocators()
	if l.Bank == "" {
		l.Bank = d.Bank
	}
	if l.State == "" {
		l.State = d.State
	}
	if l.District == "" {
		l.District = d.District
	}
	if l.Branch == "" {
		l.Branch = d.Branch
	}
	if len(l.Containers) == 0 {
		l.Containers = d.Containers
	}
	return l
}
