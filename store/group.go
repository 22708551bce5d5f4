/*
Copyright © 2024 the cfsarchive authors.
This file is part of cfsarchive.

cfsarchive is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

cfsarchive is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with cfsarchive.  If not, see <http://www.gnu.org/licenses/>.
*/

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gocloud.dev/blob"
)

// Group is a named node in the archive hierarchy that carries
// string-keyed attributes and holds arrays and/or child groups.
type Group struct {
	s    *Store
	path string // slash-terminated, relative to the store root
}

// Group returns the group at path, which may be nested ("a/b/c").
// Groups are created implicitly by writing an attribute or an array
// under them; Group itself does no I/O.
func (s *Store) Group(path string) *Group {
	path = strings.Trim(path, "/")
	if path != "" {
		path += "/"
	}
	return &Group{s: s, path: path}
}

func (g *Group) attrsKey() string { return g.path + ".attrs.json" }

// Attrs returns the group's attributes. A group with no attributes
// file yet returns an empty, non-nil map.
func (g *Group) Attrs(ctx context.Context) (map[string]string, error) {
	ok, err := g.s.exists(ctx, g.attrsKey())
	if err != nil {
		return nil, fmt.Errorf("store: checking attrs for group %q: %v", g.path, err)
	}
	if !ok {
		return map[string]string{}, nil
	}
	b, err := g.s.readBlob(ctx, g.attrsKey())
	if err != nil {
		return nil, fmt.Errorf("store: reading attrs for group %q: %v", g.path, err)
	}
	var attrs map[string]string
	if err := json.Unmarshal(b, &attrs); err != nil {
		return nil, fmt.Errorf("store: decoding attrs for group %q: %v", g.path, err)
	}
	return attrs, nil
}

// Attr returns a single attribute value and whether it was present.
func (g *Group) Attr(ctx context.Context, key string) (string, bool, error) {
	attrs, err := g.Attrs(ctx)
	if err != nil {
		return "", false, err
	}
	v, ok := attrs[key]
	return v, ok, nil
}

// SetAttr sets a single attribute on the group, read-modify-writing the
// attrs file. The archive's concurrency contract is that a group's attrs
// are mutated by exactly one writer at a time, so no additional locking
// is applied here.
func (g *Group) SetAttr(ctx context.Context, key, value string) error {
	attrs, err := g.Attrs(ctx)
	if err != nil {
		return err
	}
	attrs[key] = value
	return g.writeAttrs(ctx, attrs)
}

// ClearAttr removes a single attribute from the group.
func (g *Group) ClearAttr(ctx context.Context, key string) error {
	attrs, err := g.Attrs(ctx)
	if err != nil {
		return err
	}
	delete(attrs, key)
	return g.writeAttrs(ctx, attrs)
}

func (g *Group) writeAttrs(ctx context.Context, attrs map[string]string) error {
	b, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("store: encoding attrs for group %q: %v", g.path, err)
	}
	return g.s.writeBlob(ctx, g.attrsKey(), b)
}

// Children enumerates the immediate child groups and arrays of g by
// listing blob keys under its prefix and collapsing them to their
// first path segment, the way a filesystem directory listing would.
func (g *Group) Children(ctx context.Context) ([]string, error) {
	iter := g.s.bucket.List(&blob.ListOptions{
		Prefix:    g.s.key(g.path),
		Delimiter: "/",
	})
	var names []string
	seen := make(map[string]bool)
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("store: listing children of group %q: %v", g.path, err)
		}
		name := strings.TrimSuffix(strings.TrimPrefix(obj.Key, g.s.key(g.path)), "/")
		if name == "" || name == ".attrs.json" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names, nil
}
