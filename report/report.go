// Package report renders the self-contained HTML page of a run.
package report

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"imdirdiff/artifacts"
	"imdirdiff/config"
	"imdirdiff/types"
	"imdirdiff/utils"
)

// ErrReportWrite is returned when the report page cannot be rendered or written
var ErrReportWrite = errors.New("report write failed")

// IndexFile is the name of the page inside the report root
const IndexFile = "index.html"

const defaultTitle = "imdirdiff report"

//go:embed assets/index.html
var pageTemplate string

//go:embed assets/style.css
var styleCSS string

//go:embed assets/script.js
var scriptJS string

var page = template.Must(template.New(IndexFile).Parse(pageTemplate))

// Meta describes the run shown in the page header
type Meta struct {
	RootA       string
	RootB       string
	Backend     string
	GeneratedAt time.Time
}

// Builder renders manifests into <root>/index.html
type Builder struct {
	root          string
	title         string
	thumbSuffix   string
	linkUnmatched bool
}

// NewBuilder creates a builder for the report root in cfg
func NewBuilder(cfg config.ReportConfig) *Builder {
	title := cfg.Title
	if title == "" {
		title = defaultTitle
	}
	suffix := cfg.ThumbSuffix
	if suffix == "" {
		suffix = config.DefaultThumbSuffix
	}

	return &Builder{
		root:          cfg.Root,
		title:         title,
		thumbSuffix:   suffix,
		linkUnmatched: cfg.CopyUnmatched,
	}
}

type unmatchedEntry struct {
	Path string
	Link string
}

type changedEntry struct {
	Path       string
	Similarity string
	LinkA      string
	ThumbA     string
	LinkB      string
	ThumbB     string
	LinkDiff   string
	ThumbDiff  string
}

type pageData struct {
	Title     string
	Style     template.CSS
	Script    template.JS
	RootA     string
	RootB     string
	Backend   string
	Generated string
	Counts    types.Counts
	OnlyInA   []unmatchedEntry
	OnlyInB   []unmatchedEntry
	Changed   []changedEntry
}

// Render writes the page for manifest to w
func (b *Builder) Render(w io.Writer, manifest types.Manifest, meta Meta) error {
	data := pageData{
		Title:     b.title,
		Style:     template.CSS(styleCSS),
		Script:    template.JS(scriptJS),
		RootA:     meta.RootA,
		RootB:     meta.RootB,
		Backend:   meta.Backend,
		Generated: meta.GeneratedAt.Format(time.RFC1123),
		Counts:    manifest.Counts(),
	}

	for _, rec := range manifest {
		switch r := rec.(type) {
		case types.OnlyInARecord:
			data.OnlyInA = append(data.OnlyInA, b.unmatched(artifacts.SideA, r.Path))
		case types.OnlyInBRecord:
			data.OnlyInB = append(data.OnlyInB, b.unmatched(artifacts.SideB, r.Path))
		case types.ChangedRecord:
			data.Changed = append(data.Changed, b.changed(r))
		}
	}

	if err := page.Execute(w, data); err != nil {
		return fmt.Errorf("%w: %w", ErrReportWrite, err)
	}
	return nil
}

// Write renders the page into memory and then replaces <root>/index.html.
// It returns the path of the written page.
func (b *Builder) Write(manifest types.Manifest, meta Meta) (string, error) {
	var buf bytes.Buffer
	if err := b.Render(&buf, manifest, meta); err != nil {
		return "", err
	}

	if err := os.MkdirAll(b.root, 0o755); err != nil {
		return "", fmt.Errorf("%w: %w", ErrReportWrite, err)
	}

	out := filepath.Join(b.root, IndexFile)
	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("%w: %w", ErrReportWrite, err)
	}
	return out, nil
}

func (b *Builder) unmatched(side artifacts.Side, p types.ImagePath) unmatchedEntry {
	e := unmatchedEntry{Path: string(p)}
	if b.linkUnmatched {
		e.Link = escapeLink(utils.ReportURL(string(side), string(p)))
	}
	return e
}

func (b *Builder) changed(r types.ChangedRecord) changedEntry {
	linkA := utils.ReportURL(string(artifacts.SideA), string(r.Path))
	linkB := utils.ReportURL(string(artifacts.SideB), string(r.Path))
	linkDiff := r.DiffAsset
	if linkDiff == "" {
		linkDiff = path.Join(artifacts.DiffDirName, filepath.ToSlash(string(r.Path)))
	}

	return changedEntry{
		Path:       string(r.Path),
		Similarity: FormatSimilarity(r.Score),
		LinkA:      escapeLink(linkA),
		ThumbA:     escapeLink(utils.ThumbPath(linkA, b.thumbSuffix)),
		LinkB:      escapeLink(linkB),
		ThumbB:     escapeLink(utils.ThumbPath(linkB, b.thumbSuffix)),
		LinkDiff:   escapeLink(linkDiff),
		ThumbDiff:  escapeLink(utils.ThumbPath(linkDiff, b.thumbSuffix)),
	}
}

// escapeLink percent-encodes a relative path so # and ? stay part of the file name
func escapeLink(p string) string {
	return (&url.URL{Path: p}).EscapedPath()
}

// FormatSimilarity renders a score as a percentage with two decimals
func FormatSimilarity(score float64) string {
	return fmt.Sprintf("%.2f%%", score*100)
}
