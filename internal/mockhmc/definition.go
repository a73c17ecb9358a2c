// zhmc-go - IBM Z Hardware Management Console (HMC) Web Services API client
// Copyright 2026 zhmc-go contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package mockhmc

import (
	"github.com/zhmcclient/zhmc-go/internal/config"
)

// LoadDefinition populates an empty Server's resource tree from a
// config.MockDefinition (spec.md 4.H: "serialized to/from YAML via a
// documented schema"). Resources are added in file order; adding one does
// not look up its parent_uri, so a child may appear before its parent.
func (s *Server) LoadDefinition(def *config.MockDefinition) {
	for _, res := range def.Resources {
		props := cloneProps(res.Properties)
		n := &node{
			class:      res.Class,
			uri:        res.URI,
			parentURI:  res.ParentURI,
			properties: props,
		}
		if n.uri == "" {
			n.uri = newNode(res.Class, res.ParentURI, nil).uri
		}
		n.properties["object-uri"] = n.uri
		n.properties["class"] = res.Class
		s.tree.add(n)
	}
}

// Definition captures the Server's current resource tree as a
// config.MockDefinition, the inverse of LoadDefinition, used by tests that
// want to snapshot a scenario's starting state as a fixture file.
func (s *Server) Definition() *config.MockDefinition {
	s.tree.mu.RLock()
	defer s.tree.mu.RUnlock()

	def := &config.MockDefinition{}
	for _, n := range s.tree.byURI {
		def.Resources = append(def.Resources, config.MockResource{
			Class:      n.class,
			URI:        n.uri,
			ParentURI:  n.parentURI,
			Properties: n.snapshot(),
		})
	}
	return def
}
