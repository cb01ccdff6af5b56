package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hazyhaar/ifscdir/branch"
	"github.com/hazyhaar/ifscdir/scraper/internal/page"
)

func TestParseLabelledLines(t *testing.T) {
	c := page.Content{Text: "IFSC Code: HDFC0001234\nMICR Code: 400240001\nAddress: 123 MG Road\nContact: 022-12345678"}
	got := Parse(c)
	want := &branch.Detail{
		IFSC:    "HDFC0001234",
		MICR:    "400240001",
		Address: "123 MG Road",
		Contact: "022-12345678",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Parse (-want +got):\n%s", diff)
	}
}

func TestParseSingleLine(t *testing.T) {
	c := page.Content{Text: "Bank: HDFC BANK Branch: ANDHERI EAST IFSC Code: HDFC0001234 MICR Code: 400240001 Address: 123 MG Road, Andheri East Contact: 022-12345678"}
	got := Parse(c)
	if got == nil {
		t.Fatal("Parse: nil")
	}
	if got.Address != "123 MG Road, Andheri East" {
		t.Errorf("Address: got %q", got.Address)
	}
	if got.Contact != "022-12345678" {
		t.Errorf("Contact: got %q", got.Contact)
	}
	if got.BranchDetails != "ANDHERI EAST" {
		t.Errorf("BranchDetails: got %q", got.BranchDetails)
	}
}

func TestParseNoRoutingCode(t *testing.T) {
	cases := []string{
		"Address: 123 MG Road\nContact: 022-12345678",
		"IFSC Code: HDFC00012345",
		"IFSC Code: HDF0001234",
		"",
	}
	for _, text := range cases {
		if got := Parse(page.Content{Text: text}); got != nil {
			t.Errorf("Parse(%q): got %+v, want nil", text, got)
		}
	}
}

func TestParseLowerCaseCode(t *testing.T) {
	d := Parse(page.Content{Text: "IFSC Code: hdfc0001234\nMICR Code: 400240001"})
	if d == nil {
		t.Fatal("Parse: got nil for a lower-case code")
	}
	if d.IFSC != "HDFC0001234" {
		t.Errorf("IFSC: got %q, want HDFC0001234", d.IFSC)
	}
}

func TestParseLooseLabels(t *testing.T) {
	text := "IFSC SBIN0000300\nMICR 400002000\nOffice: Mumbai Main Branch\nAddress Horniman Circle, Fort State: MAHARASHTRA\nPhone 022 22661000"
	got := Parse(page.Content{Text: text})
	if got == nil {
		t.Fatal("Parse: nil")
	}
	if got.IFSC != "SBIN0000300" || got.MICR != "400002000" {
		t.Errorf("codes: got %q %q", got.IFSC, got.MICR)
	}
	if got.Address != "Horniman Circle, Fort" {
		t.Errorf("Address: got %q", got.Address)
	}
	if got.Contact != "022 22661000" {
		t.Errorf("Contact: got %q", got.Contact)
	}
	if got.BranchDetails != "Mumbai Main Branch" {
		t.Errorf("BranchDetails: got %q", got.BranchDetails)
	}
}

func TestParseRowFallback(t *testing.T) {
	html := `<div>
<table>
  <tr><td>Address</td> <td>Plot 7, Sector 17, Vashi, Navi Mumbai 400703</td></tr>
  <tr><td>Phone</td> <td>022 27890000</td></tr>
</table>
</div>`
	got := Parse(page.Content{Text: "IFSC Code: HDFC0000123", HTML: html})
	if got == nil {
		t.Fatal("Parse: nil")
	}
	if got.Address != "Plot 7, Sector 17, Vashi, Navi Mumbai 400703" {
		t.Errorf("Address: got %q", got.Address)
	}
	if got.Contact != "022 27890000" {
		t.Errorf("Contact: got %q", got.Contact)
	}
}

func TestCleanValue(t *testing.T) {
	cases := []struct{ in, want string }{
		{"  123   MG\nRoad  ", "123 MG Road"},
		{"Address: 5 Park St", "5 Park St"},
		{"- ANDHERI EAST", "ANDHERI EAST"},
		{": ANDHERI", "ANDHERI"},
		{"Fort Mumbai ...", "Fort Mumbai"},
		{"zero\u200bwidth", "zerowidth"},
		{"a\u00a0b", "a b"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := CleanValue(tc.in); got != tc.want {
			t.Errorf("CleanValue(%q): got %q, want %q", tc.in, got, tc.want)
		}
	}
}

type containerDriver struct {
	content map[string]page.Content
	err     error
}

func (d *containerDriver) Load(context.Context, string) error { return nil }
func (d *containerDriver) Options(context.Context, string) ([]branch.Option, error) {
	return nil, nil
}
func (d *containerDriver) Select(context.Context, string, string, page.Strategy) error {
	return nil
}
func (d *containerDriver) Read(_ context.Context, loc string) (page.Content, error) {
	if d.err != nil {
		return page.Content{}, d.err
	}
	c, ok := d.content[loc]
	if !ok {
		return page.Content{}, page.ErrNotFound
	}
	return c, nil
}
func (d *containerDriver) Close() error { return nil }

func TestExtractorTriesContainersInOrder(t *testing.T) {
	drv := &containerDriver{content: map[string]page.Content{
		"#second": {Text: "IFSC Code: ICIC0000001"},
		"#third":  {Text: "IFSC Code: SBIN0000001"},
	}}
	x := New(drv, Config{Containers: []string{"#first", "#second", "#third"}})
	d, _, err := x.Extract(context.Background())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if d == nil || d.IFSC != "ICIC0000001" {
		t.Errorf("Extract: got %+v, want second container", d)
	}
}

func TestExtractorNoContainer(t *testing.T) {
	x := New(&containerDriver{}, Config{Containers: []string{"#nope"}})
	_, _, err := x.Extract(context.Background())
	if !errors.Is(err, ErrNoContainer) {
		t.Errorf("got %v, want ErrNoContainer", err)
	}
}

func TestExtractorClosedDriver(t *testing.T) {
	x := New(&containerDriver{err: page.ErrClosed}, Config{Containers: []string{"#a", "#b"}})
	_, _, err := x.Extract(context.Background())
	if !errors.Is(err, page.ErrClosed) {
		t.Errorf("got %v, want ErrClosed", err)
	}
}

func TestSample(t *testing.T) {
	c := page.Content{
		Text: "ignored",
		HTML: `<div><script>alert(1)</script><p>Branch: <b>Fort</b></p><table><tr><td>Address</td><td>5 Park St</td></tr></table></div>`,
	}
	s := Sample(c)
	if strings.Contains(s, "alert") {
		t.Errorf("sample kept script: %q", s)
	}
	if !strings.Contains(s, "Fort") || !strings.Contains(s, "5 Park St") {
		t.Errorf("sample lost content: %q", s)
	}

	long := Sample(page.Content{Text: strings.Repeat("é", SampleLimit+50)})
	if n := len([]rune(long)); n != SampleLimit {
		t.Errorf("sample length: got %d runes, want %d", n, SampleLimit)
	}
}
