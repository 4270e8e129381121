// Package extract implements the ad-hoc query engine behind advanced
// search: criteria arrive in the legacy wire format, each resolves to a
// set of episode ids, and the sets fold left to right into one result
// that can be projected as JSON or a downloadable archive.
package extract

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/caretrack/caretrack/internal/platform/auth"
	"github.com/caretrack/caretrack/internal/platform/export"
	"github.com/caretrack/caretrack/internal/platform/metrics"
	"github.com/caretrack/caretrack/internal/schema"
)

// EpisodeSerializer renders one matched episode for a viewer. Satisfied
// by the episode service; serialization is per episode so tag and team
// visibility stay per viewer.
type EpisodeSerializer interface {
	Serialize(ctx context.Context, id uuid.UUID, viewer auth.User) (map[string]any, error)
}

// Pair is one resolved criterion: its combinator and the episodes it
// matched.
type Pair struct {
	Combine  string
	Episodes Set
}

// Combine folds resolved criteria left to right. The first pair seeds
// the working set and its combinator is ignored; and intersects, or
// unions, not removes the current set from the accumulated one. Empty
// input yields an empty set, not an error.
func Combine(pairs []Pair) Set {
	if len(pairs) == 0 {
		return Set{}
	}
	working := pairs[0].Episodes
	for _, p := range pairs[1:] {
		switch p.Combine {
		case CombineOr:
			working = working.Union(p.Episodes)
		case CombineNot:
			working = working.Difference(p.Episodes)
		default:
			working = working.Intersect(p.Episodes)
		}
	}
	return working
}

// Extractor runs whole queries and projects the results.
type Extractor struct {
	resolver *Resolver
	registry *schema.Registry
	episodes EpisodeSerializer
	metrics  *metrics.Metrics
	brand    string
}

func NewExtractor(resolver *Resolver, registry *schema.Registry, episodes EpisodeSerializer, m *metrics.Metrics, brand string) *Extractor {
	return &Extractor{
		resolver: resolver,
		registry: registry,
		episodes: episodes,
		metrics:  m,
		brand:    brand,
	}
}

// Run resolves every criterion and combines the resulting sets. A
// single failing criterion aborts the whole query.
func (x *Extractor) Run(ctx context.Context, criteria []Criterion) (Set, error) {
	start := time.Now()
	pairs := make([]Pair, 0, len(criteria))
	for _, c := range criteria {
		set, err := x.resolver.Resolve(ctx, c)
		if err != nil {
			x.metrics.RecordExtraction("error", 0, time.Since(start))
			return nil, err
		}
		pairs = append(pairs, Pair{Combine: c.Combine, Episodes: set})
	}
	matched := Combine(pairs)
	x.metrics.RecordExtraction("ok", len(matched), time.Since(start))
	return matched, nil
}

// ProjectJSON serializes each matched episode for the viewer, in stable
// id order.
func (x *Extractor) ProjectJSON(ctx context.Context, criteria []Criterion, viewer auth.User) ([]map[string]any, error) {
	matched, err := x.Run(ctx, criteria)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(matched))
	for _, id := range matched.IDs() {
		serialized, err := x.episodes.Serialize(ctx, id, viewer)
		if err != nil {
			return nil, fmt.Errorf("serialize episode %s: %w", id, err)
		}
		out = append(out, serialized)
	}
	return out, nil
}

// ProjectCSV renders the matched episodes as a zip of CSV files and
// returns the archive bytes with its download filename.
func (x *Extractor) ProjectCSV(ctx context.Context, criteria []Criterion, viewer auth.User, description string) ([]byte, string, error) {
	data, err := x.project(ctx, criteria, viewer, description, export.ZipArchive)
	if err != nil {
		return nil, "", err
	}
	return data, export.Filename(x.brand, "zip", time.Now()), nil
}

// ProjectXLSX renders the matched episodes as a workbook with one sheet
// per record type.
func (x *Extractor) ProjectXLSX(ctx context.Context, criteria []Criterion, viewer auth.User, description string) ([]byte, string, error) {
	data, err := x.project(ctx, criteria, viewer, description, export.Workbook)
	if err != nil {
		return nil, "", err
	}
	return data, export.Filename(x.brand, "xlsx", time.Now()), nil
}

// writeArchive renders tables plus a description into one download.
// Both export formats satisfy it.
type writeArchive func(tables []export.Table, description string) ([]byte, error)

// project runs the query and hands the tabulated result to the archive
// writer. Writer failures surface to the caller; a broken archive is
// never served as if it were complete.
func (x *Extractor) project(ctx context.Context, criteria []Criterion, viewer auth.User, description string, write writeArchive) ([]byte, error) {
	episodes, err := x.ProjectJSON(ctx, criteria, viewer)
	if err != nil {
		return nil, err
	}
	data, err := write(x.tables(episodes), description)
	if err != nil {
		return nil, fmt.Errorf("write archive: %w", err)
	}
	return data, nil
}

// episodeHeaders orders the columns of the episodes table.
var episodeHeaders = []string{
	"id", "patient_id", "category", "active",
	"date_of_admission", "discharge_date", "tagging",
}

// tables lays the serialized episodes out as one episodes table plus
// one table per episode-scoped record type that has instances in the
// extract.
func (x *Extractor) tables(episodes []map[string]any) []export.Table {
	main := export.Table{Name: "episodes", Headers: episodeHeaders}
	for _, ep := range episodes {
		row := make([]string, 0, len(episodeHeaders))
		for _, h := range episodeHeaders {
			if h == "tagging" {
				row = append(row, tagCell(ep[h]))
				continue
			}
			row = append(row, cell(ep[h]))
		}
		main.Rows = append(main.Rows, row)
	}
	out := []export.Table{main}

	for _, rt := range x.registry.EpisodeSubrecords() {
		headers := make([]string, 0, len(rt.Fields)+1)
		headers = append(headers, "episode_id")
		for _, f := range rt.Fields {
			headers = append(headers, f.Name)
		}

		var rows [][]string
		for _, ep := range episodes {
			items, _ := ep[rt.Name].([]map[string]any)
			for _, item := range items {
				row := make([]string, 0, len(headers))
				row = append(row, cell(ep["id"]))
				for _, f := range rt.Fields {
					row = append(row, cell(item[f.Name]))
				}
				rows = append(rows, row)
			}
		}
		if len(rows) == 0 {
			continue
		}
		out = append(out, export.Table{Name: rt.Name, Headers: headers, Rows: rows})
	}
	return out
}

// cell renders one serialized value as archive text.
func cell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case uuid.UUID:
		return t.String()
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return fmt.Sprint(t)
	}
}

// tagCell joins the truthy names of the one-element tagging list.
func tagCell(v any) string {
	lists, ok := v.([]map[string]bool)
	if !ok || len(lists) == 0 {
		return ""
	}
	names := make([]string, 0, len(lists[0]))
	for name, on := range lists[0] {
		if on {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return strings.Join(names, ";")
}

// Description renders the audit text embedded in extract downloads: the
// requesting user, the date, and one line per criterion.
func Description(username string, at time.Time, criteria []Criterion) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\nSearching for:\n", username, at.Format("02/01/2006"))
	for _, c := range criteria {
		fmt.Fprintf(&b, "%s %s %s %s %s\n", c.Combine, c.Column, c.Field, c.QueryType, c.Query)
	}
	return b.String()
}
