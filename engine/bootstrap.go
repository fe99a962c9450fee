// Copyright 2023 The CubeFS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

package engine

import (
	"context"

	"github.com/cubefs/cubefs/blobstore/common/trace"

	"github.com/cubefs/ldpstore/rdf"
	"github.com/cubefs/ldpstore/resource"
)

// InitializeRoot creates the root container unless it already exists.
// Running it concurrently from several processes may write the root twice,
// which leaves one live version and an extra memento.
func (s *Service) InitializeRoot(ctx context.Context) error {
	span := trace.SpanFromContextSafe(ctx)
	root := rdf.DataPrefix

	l, err := s.Get(ctx, root)
	if err != nil {
		return err
	}
	if !l.IsMissing() {
		span.Infof("root container %s already present", root)
		return nil
	}
	meta := resource.Metadata{Identifier: root, InteractionModel: rdf.LDPBasicContainer}
	if err = s.Create(ctx, meta, rdf.NewDataset()); err != nil {
		span.Errorf("create root container %s failed: %s", root, err)
		return err
	}
	span.Infof("root container %s created", root)
	return nil
}
