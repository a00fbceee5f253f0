package page

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/feedsieve/internal/dom"
)

const snapshot = `<html><head><link rel="canonical" href="https://x.com/home"></head><body>
<nav><a role="tab" aria-selected="true"><span>For you</span></a></nav>
<div aria-label="Home timeline"><div data-testid="cellInnerDiv" id="one"><article></article></div></div>
</body></html>`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestOpen_Location(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name     string
		content  string
		override string
		want     string
	}{
		{"canonical link", snapshot, "", "https://x.com/home"},
		{"og url", `<html><head><meta property="og:url" content="https://x.com/explore"></head><body></body></html>`, "", "https://x.com/explore"},
		{"fallback to home route", `<html><body></body></html>`, "", "/home"},
		{"override wins", snapshot, "/notifications", "/notifications"},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, strings.Repeat("p", i+1)+".html", tt.content)

			p, err := Open(path, Options{Location: tt.override})
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Document().Location())
			assert.Equal(t, path, p.Path())
		})
	}
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.html"), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "opening page")
}

func TestReload_KeepsContainerIdentity(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "page.html", snapshot)

	p, err := Open(path, Options{})
	require.NoError(t, err)

	doc := p.Document()
	container := doc.QuerySelector(`div[aria-label="Home timeline"]`)
	require.NotNil(t, container)

	var records []dom.Record
	doc.Observe(container, func(r []dom.Record) { records = append(records, r...) })

	writeFile(t, dir, "page.html", strings.Replace(snapshot,
		`<div data-testid="cellInnerDiv" id="one"><article></article></div>`,
		`<div data-testid="cellInnerDiv" id="two"><article></article></div><div data-testid="cellInnerDiv" id="three"></div>`, 1))

	require.NoError(t, p.Reload())

	assert.Same(t, container, doc.QuerySelector(`div[aria-label="Home timeline"]`))
	assert.True(t, doc.Attached(container))
	assert.Nil(t, doc.QuerySelector("#one"))
	assert.NotNil(t, doc.QuerySelector("#two"))
	assert.NotNil(t, doc.QuerySelector("#three"))

	require.Len(t, records, 1)
	assert.Len(t, records[0].Added, 2)
	assert.Len(t, records[0].Removed, 1)
}

func TestReload_UpdatesOutsideContainer(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "page.html", snapshot)

	p, err := Open(path, Options{})
	require.NoError(t, err)

	writeFile(t, dir, "page.html", strings.Replace(snapshot, `aria-selected="true"`, `aria-selected="false"`, 1))
	require.NoError(t, p.Reload())

	tab := p.Document().QuerySelector(`a[role="tab"]`)
	v, _ := dom.Attr(tab, "aria-selected")
	assert.Equal(t, "false", v)
}

func TestReload_NavigatesOnLocationChange(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "page.html", snapshot)

	p, err := Open(path, Options{})
	require.NoError(t, err)

	var navigated []string
	p.Document().OnNavigate(func(loc string) { navigated = append(navigated, loc) })

	require.NoError(t, p.Reload())
	assert.Empty(t, navigated, "same location is not a navigation")

	writeFile(t, dir, "page.html", strings.Replace(snapshot, "https://x.com/home", "https://x.com/explore", 1))
	require.NoError(t, p.Reload())
	assert.Equal(t, []string{"https://x.com/explore"}, navigated)
}

func TestReload_ContainerAppears(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "page.html", `<html><body><p>loading</p></body></html>`)

	p, err := Open(path, Options{})
	require.NoError(t, err)
	require.Nil(t, p.Document().QuerySelector(`div[aria-label="Home timeline"]`))

	writeFile(t, dir, "page.html", snapshot)
	require.NoError(t, p.Reload())

	assert.NotNil(t, p.Document().QuerySelector("#one"))
	assert.Nil(t, p.Document().QuerySelector("p"))
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	p, err := Open(writeFile(t, dir, "page.html", snapshot), Options{})
	require.NoError(t, err)

	dom.SetHidden(p.Document().QuerySelector("#one"), true)

	out := filepath.Join(dir, "out", "filtered.html")
	require.NoError(t, p.WriteFile(out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `id="one" style="display: none"`)
}
