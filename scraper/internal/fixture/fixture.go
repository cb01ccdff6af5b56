// Package fixture is an in-memory page driver backed by a YAML site
// description. It renders the same markup shape as the directory site, so
// the real locators resolve against it, and supports fault injection for
// load and selection failures.
package fixture

import (
	"context"
	"errors"
	"fmt"
	"html"
	"os"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/ifscdir/branch"
	"github.com/hazyhaar/ifscdir/scraper/internal/page"
)

// Site is the dropdown tree of a fixture page.
type Site struct {
	// LoadFailures fails the first N loads.
	LoadFailures int    `yaml:"load_failures"`
	Banks        []Node `yaml:"banks"`
}

// Node is one dropdown option and the options it unlocks.
type Node struct {
	Code  string `yaml:"code"`
	Label string `yaml:"label"`
	// FailSelect rejects the first N select attempts on this node, each
	// strategy counting as one attempt; -1 rejects all of them.
	FailSelect int    `yaml:"fail_select"`
	Children   []Node `yaml:"children"`
	// Detail is the HTML shown once this node is selected as a branch.
	Detail string `yaml:"detail"`
}

// LoadSite reads a YAML site file.
func LoadSite(path string) (*Site, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fixture: read %s: %w", path, err)
	}
	return ParseSite(data)
}

// ParseSite decodes a YAML site description.
func ParseSite(data []byte) (*Site, error) {
	var s Site
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("fixture: parse site: %w", err)
	}
	return &s, nil
}

var placeholders = [...]string{"Select Bank", "State", "District", "Branch"}

// Driver serves a Site through the page.Driver interface.
type Driver struct {
	mu       sync.Mutex
	site     *Site
	loc      page.Locators
	loaded   bool
	closed   bool
	selected [4]*Node
	failLoad int
	rejects  map[*Node]int
	loads    int
}

// New creates a Driver for site, resolving the given locators.
func New(site *Site, loc page.Locators) *Driver {
	d := &Driver{
		site:     site,
		loc:      loc.WithDefaults(),
		failLoad: site.LoadFailures,
		rejects:  make(map[*Node]int),
	}
	var walk func(ns []Node)
	walk = func(ns []Node) {
		for i := range ns {
			if ns[i].FailSelect != 0 {
				d.rejects[&ns[i]] = ns[i].FailSelect
			}
			walk(ns[i].Children)
		}
	}
	walk(site.Banks)
	return d
}

// Loads returns how many loads succeeded.
func (d *Driver) Loads() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loads
}

func (d *Driver) Load(ctx context.Context, _ string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return page.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.failLoad > 0 {
		d.failLoad--
		return errors.New("fixture: net::ERR_CONNECTION_RESET")
	}
	d.loaded = true
	d.loads++
	d.selected = [4]*Node{}
	return nil
}

func (d *Driver) Options(_ context.Context, locator string) ([]branch.Option, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sel, err := d.find(locator)
	if err != nil {
		return nil, err
	}
	var out []branch.Option
	sel.Find("option").Each(func(_ int, o *goquery.Selection) {
		v, _ := o.Attr("value")
		out = append(out, branch.Option{Code: v, Label: strings.TrimSpace(o.Text())})
	})
	return out, nil
}

func (d *Driver) Select(_ context.Context, locator, value string, s page.Strategy) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.find(locator); err != nil {
		return err
	}
	level, ok := d.loc.LevelOf(locator)
	if !ok {
		return fmt.Errorf("fixture: %q is not a dropdown: %w", locator, page.ErrNotFound)
	}

	var node *Node
	choices := d.choices(level)
	for i := range choices {
		n := &choices[i]
		if n.Code == value || (s == page.StrategyMatch && strings.Contains(n.Label, value)) {
			node = n
			break
		}
	}
	if node == nil {
		return page.ErrNoMatch
	}
	if left, ok := d.rejects[node]; ok && left != 0 {
		if left > 0 {
			d.rejects[node] = left - 1
		}
		return fmt.Errorf("fixture: %s %q did not take", level, value)
	}

	d.selected[level] = node
	for l := level + 1; l <= branch.Branch; l++ {
		d.selected[l] = nil
	}
	return nil
}

func (d *Driver) Read(_ context.Context, locator string) (page.Content, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sel, err := d.find(locator)
	if err != nil {
		return page.Content{}, err
	}
	h, err := goquery.OuterHtml(sel)
	if err != nil {
		return page.Content{}, fmt.Errorf("fixture: outer html: %w", err)
	}
	return page.Content{Text: sel.Text(), HTML: h}, nil
}

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Kill simulates the browser going away mid-run.
func (d *Driver) Kill() { d.Close() }

// find resolves locator against the current rendering.
func (d *Driver) find(locator string) (*goquery.Selection, error) {
	if d.closed {
		return nil, page.ErrClosed
	}
	if !d.loaded {
		return nil, page.ErrNotFound
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(d.render()))
	if err != nil {
		return nil, fmt.Errorf("fixture: parse rendering: %w", err)
	}
	sel := doc.Find(locator).First()
	if sel.Length() == 0 {
		return nil, page.ErrNotFound
	}
	return sel, nil
}

// choices returns the options offered at level given the current
// selections above it.
func (d *Driver) choices(level branch.Level) []Node {
	if level == branch.Bank {
		return d.site.Banks
	}
	parent := d.selected[level-1]
	if parent == nil {
		return nil
	}
	return parent.Children
}

func (d *Driver) render() string {
	var b strings.Builder
	b.WriteString("<html><head><title>Bank IFSC directory</title></head><body>\n")
	b.WriteString(`<table class="main"><tbody>` + "\n")
	for i := 0; i < 8; i++ {
		fmt.Fprintf(&b, "<tr><td>row %d</td></tr>\n", i+1)
	}
	b.WriteString(`<tr><td class="main"><table><tbody><tr><td><div>` + "\n")
	b.WriteString("<h1>Find bank codes</h1>\n<p>Pick a bank to begin.</p>\n")
	for _, l := range branch.Levels {
		b.WriteString("<form><div><select>\n")
		fmt.Fprintf(&b, "<option value=\"\">%s</option>\n", placeholders[l])
		for _, n := range d.choices(l) {
			attr := ""
			if d.selected[l] != nil && d.selected[l].Code == n.Code {
				attr = " selected"
			}
			fmt.Fprintf(&b, "<option value=\"%s\"%s>%s</option>\n",
				html.EscapeString(n.Code), attr, html.EscapeString(n.Label))
		}
		b.WriteString("</select></div></form>\n")
	}
	if leaf := d.selected[branch.Branch]; leaf != nil {
		b.WriteString("<div class=\"detail\">\n" + leaf.Detail + "\n</div>\n")
	}
	b.WriteString("</div></td><td>ads</td></tr></tbody></table></td></tr>\n")
	b.WriteString("</tbody></table></body></html>")
	return b.String()
}
