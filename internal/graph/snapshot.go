package graph

import (
	"context"
	"fmt"
	"time"
)

// Snapshot is the structural export of one node.
type Snapshot struct {
	OID      OID            `json:"oid"`
	Type     string         `json:"type"`
	UUID     string         `json:"uuid"`
	CTime    time.Time      `json:"ctime"`
	Attrs    []AttrSnapshot `json:"attrs"`
	Contents []*Content     `json:"contents"`
	Tags     []TagSnapshot  `json:"tags"`
	Links    []*Link        `json:"links"`
}

type AttrSnapshot struct {
	Key   string   `json:"key"`
	Lang  string   `json:"lang"`
	Type  AttrType `json:"type"`
	Value any      `json:"value"`
}

type TagSnapshot struct {
	Tagset string   `json:"tagset"`
	Tags   []string `json:"tags"`
}

// Snapshot reads the node identity and every attribute, content
// reference, tagset membership and outgoing link.
func (n *Node) Snapshot(ctx context.Context) (*Snapshot, error) {
	nodes, err := n.graph.Nodes()
	if err != nil {
		return nil, err
	}
	typeName, ok, err := nodes.Type(ctx, n.oid)
	if err != nil {
		return nil, fmt.Errorf("reading type: %w", err)
	}
	if !ok {
		return nil, &NotFoundError{OID: n.oid}
	}
	s := &Snapshot{
		OID:      n.oid,
		Type:     typeName,
		Attrs:    []AttrSnapshot{},
		Contents: []*Content{},
		Tags:     []TagSnapshot{},
		Links:    []*Link{},
	}
	if s.UUID, err = nodes.UUID(ctx, n.oid); err != nil {
		return nil, fmt.Errorf("reading uuid: %w", err)
	}
	if s.CTime, err = nodes.CTime(ctx, n.oid); err != nil {
		return nil, fmt.Errorf("reading ctime: %w", err)
	}

	keys, err := nodes.Attributes(ctx, n.oid)
	if err != nil {
		return nil, fmt.Errorf("listing attributes: %w", err)
	}
	for _, k := range keys {
		v, err := n.Get(ctx, k.Key, Lang(k.Lang))
		if err != nil {
			return nil, fmt.Errorf("reading attribute %s: %w", k.Key, err)
		}
		if v == nil {
			continue
		}
		s.Attrs = append(s.Attrs, AttrSnapshot{Key: k.Key, Lang: k.Lang, Type: v.Type(), Value: v.Interface()})
	}

	contents, err := nodes.Contents(ctx, n.oid)
	if err != nil {
		return nil, fmt.Errorf("listing contents: %w", err)
	}
	s.Contents = append(s.Contents, contents...)

	tagsets, err := nodes.Tagsets(ctx, n.oid)
	if err != nil {
		return nil, fmt.Errorf("listing tagsets: %w", err)
	}
	for _, name := range tagsets {
		tags, err := n.Tags(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("reading tagset %s: %w", name, err)
		}
		s.Tags = append(s.Tags, TagSnapshot{Tagset: name, Tags: tags})
	}

	links, err := nodes.Links(ctx, n.oid)
	if err != nil {
		return nil, fmt.Errorf("listing links: %w", err)
	}
	s.Links = append(s.Links, links...)
	return s, nil
}
