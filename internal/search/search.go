// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package search runs queries against the per-watcher indexes.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/wingedpig/logharbor/internal/index"
	"github.com/wingedpig/logharbor/internal/store"
)

// Operator joins the free-text clauses.
type Operator string

const (
	OpAnd Operator = "AND"
	OpOr  Operator = "OR"
)

// Query is one search request against a single watcher's index. The three
// free-text fields each match their own indexed field as a case-insensitive
// substring and are joined by Operator; FilePath is an exact filter that
// always restricts, regardless of Operator, as does the date range.
type Query struct {
	WatcherName string
	ContentQ    string
	TimestampQ  string
	LogPathQ    string
	FilePath    string
	Operator    Operator
	StartDate   string // local datetime "2006-01-02T15:04:05" in the watcher's zone
	EndDate     string
	Page        int // 1-based
	PageSize    int
}

// Hit is one matching event, with stored values in original case.
type Hit struct {
	Timestamp string `json:"timestamp"`
	FilePath  string `json:"filePath"`
	Content   string `json:"content"`
}

// Result is one page of matches plus the total match count.
type Result struct {
	TotalHits uint64 `json:"totalHits"`
	Page      int    `json:"page"`
	PageSize  int    `json:"pageSize"`
	Results   []Hit  `json:"results"`
}

const defaultPageSize = 20

// datetimeLayout is the wall-clock format of range bounds, interpreted in the
// watcher's time zone.
const datetimeLayout = "2006-01-02T15:04:05"

// Engine resolves watcher metadata and runs index queries.
type Engine struct {
	store   *store.Store
	indexes *index.Manager
}

func New(st *store.Store, indexes *index.Manager) *Engine {
	return &Engine{store: st, indexes: indexes}
}

// Search runs one query. A watcher that has never been ingested, or a query
// with no effective criteria, yields an empty result rather than an error.
func (e *Engine) Search(ctx context.Context, q Query) (*Result, error) {
	if q.WatcherName == "" {
		return nil, fmt.Errorf("watcherName is required")
	}
	if q.PageSize <= 0 {
		q.PageSize = defaultPageSize
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	empty := &Result{Page: q.Page, PageSize: q.PageSize, Results: []Hit{}}

	loc, err := e.watcherLocation(ctx, q.WatcherName)
	if err != nil {
		return nil, err
	}

	bq, err := buildQuery(q, loc)
	if err != nil {
		return nil, err
	}
	if bq == nil {
		return empty, nil
	}

	idx, err := e.indexes.Open(q.WatcherName)
	if errors.Is(err, index.ErrNoIndex) {
		return empty, nil
	}
	if err != nil {
		return nil, err
	}
	// Holds the handle open across the query even if an ingestion pass
	// finishes and drains the manager meanwhile.
	defer e.indexes.Release(q.WatcherName)

	from := (q.Page - 1) * q.PageSize
	req := bleve.NewSearchRequestOptions(bq, q.PageSize, from, false)
	req.Fields = []string{index.FieldStrTimestamp, index.FieldLogPath, index.FieldContent}
	req.SortBy([]string{index.FieldLongTimestamp})

	res, err := idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", q.WatcherName, err)
	}

	out := &Result{TotalHits: res.Total, Page: q.Page, PageSize: q.PageSize, Results: make([]Hit, 0, len(res.Hits))}
	for _, hit := range res.Hits {
		out.Results = append(out.Results, Hit{
			Timestamp: fieldString(hit.Fields, index.FieldStrTimestamp),
			FilePath:  fieldString(hit.Fields, index.FieldLogPath),
			Content:   fieldString(hit.Fields, index.FieldContent),
		})
	}
	return out, nil
}

// watcherLocation returns the watcher's zone, or UTC when the watcher row is
// gone (its index may outlive it).
func (e *Engine) watcherLocation(ctx context.Context, name string) (*time.Location, error) {
	w, err := e.store.Watchers.FindByKey(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("load watcher %s: %w", name, err)
	}
	if w == nil {
		return time.UTC, nil
	}
	return w.Location(), nil
}

// buildQuery assembles the boolean query. Returns nil when the request carries
// no criteria at all.
func buildQuery(q Query, loc *time.Location) (query.Query, error) {
	freeText := freeTextQuery(q)

	var must []query.Query
	if freeText != nil {
		must = append(must, freeText)
	}

	if p := strings.TrimSpace(q.FilePath); p != "" {
		// The path field is indexed as a single lowercased term; the stored
		// value keeps its original case.
		t := query.NewTermQuery(strings.ToLower(p))
		t.SetField(index.FieldLogPath)
		must = append(must, t)
	}

	rq, err := rangeQuery(q.StartDate, q.EndDate, loc)
	if err != nil {
		return nil, err
	}
	if rq != nil {
		must = append(must, rq)
	}

	switch len(must) {
	case 0:
		return nil, nil
	case 1:
		return must[0], nil
	default:
		return query.NewConjunctionQuery(must), nil
	}
}

// freeTextQuery joins the per-field substring clauses with the operator.
func freeTextQuery(q Query) query.Query {
	type clause struct {
		field string
		term  string
	}
	candidates := []clause{
		{index.FieldContent, q.ContentQ},
		{index.FieldStrTimestamp, q.TimestampQ},
		{index.FieldLogPath, q.LogPathQ},
	}

	var clauses []query.Query
	for _, c := range candidates {
		term := strings.TrimSpace(c.term)
		if term == "" {
			continue
		}
		wq := query.NewWildcardQuery("*" + strings.ToLower(term) + "*")
		wq.SetField(c.field)
		clauses = append(clauses, wq)
	}

	switch len(clauses) {
	case 0:
		return nil
	case 1:
		return clauses[0]
	}
	if q.Operator == OpOr {
		return query.NewDisjunctionQuery(clauses)
	}
	return query.NewConjunctionQuery(clauses)
}

// rangeQuery bounds logLongTimestamp by the start/end wall-clock datetimes
// interpreted in loc. Either side may be empty.
func rangeQuery(start, end string, loc *time.Location) (query.Query, error) {
	if start == "" && end == "" {
		return nil, nil
	}

	var min, max *float64
	if start != "" {
		t, err := time.ParseInLocation(datetimeLayout, start, loc)
		if err != nil {
			return nil, fmt.Errorf("invalid startDate %q: %w", start, err)
		}
		v := float64(t.UnixMilli())
		min = &v
	}
	if end != "" {
		t, err := time.ParseInLocation(datetimeLayout, end, loc)
		if err != nil {
			return nil, fmt.Errorf("invalid endDate %q: %w", end, err)
		}
		v := float64(t.UnixMilli())
		max = &v
	}
	if min != nil && max != nil && *min > *max {
		return nil, fmt.Errorf("startDate is after endDate")
	}

	rq := query.NewNumericRangeQuery(min, max)
	rq.SetField(index.FieldLongTimestamp)
	return rq, nil
}

func fieldString(fields map[string]interface{}, name string) string {
	if s, ok := fields[name].(string); ok {
		return s
	}
	return ""
}
