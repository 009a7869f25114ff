package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"episodic-memory/internal/resilience"
	"episodic-memory/internal/types"
)

// EpisodeStore is the typed persistence façade the orchestrator depends on,
// layered over a Backend via JSON encoding, with every read and write
// routed through a CompressedTransport (spec §4.7.2, §6: "store_patterns
// and episode mutations are atomic" — BatchCommit provides that
// guarantee here).
type EpisodeStore struct {
	backend   Backend
	transport *resilience.CompressedTransport
}

// NewEpisodeStore wraps backend in the typed façade, compressing values
// through transport on the way in and decompressing them on the way out.
func NewEpisodeStore(backend Backend, transport *resilience.CompressedTransport) *EpisodeStore {
	return &EpisodeStore{backend: backend, transport: transport}
}

// PutEpisode persists an episode, replacing any prior version.
func (s *EpisodeStore) PutEpisode(ctx context.Context, ep *types.Episode) error {
	data, err := json.Marshal(ep)
	if err != nil {
		return fmt.Errorf("storage: marshal episode: %w", err)
	}
	_, err = s.transport.Send(ctx, episodeKey(ep.ID), data)
	return err
}

// GetEpisode loads an episode by id.
func (s *EpisodeStore) GetEpisode(ctx context.Context, id uuid.UUID) (*types.Episode, error) {
	raw, err := s.backend.Get(ctx, episodeKey(id))
	if err != nil {
		return nil, err
	}
	data, err := s.transport.DecodeStored(raw)
	if err != nil {
		return nil, err
	}
	var ep types.Episode
	if err := json.Unmarshal(data, &ep); err != nil {
		return nil, fmt.Errorf("storage: unmarshal episode: %w", err)
	}
	return &ep, nil
}

// DeleteEpisode removes an episode.
func (s *EpisodeStore) DeleteEpisode(ctx context.Context, id uuid.UUID) error {
	return s.backend.Delete(ctx, episodeKey(id))
}

// ScanEpisodes returns every persisted episode. Callers filter further
// in-process (domain/task-type/time queries are served from the
// spatiotemporal index, not by re-scanning storage).
func (s *EpisodeStore) ScanEpisodes(ctx context.Context) ([]*types.Episode, error) {
	kvs, err := s.backend.Scan(ctx, []byte(prefixEpisode))
	if err != nil {
		return nil, err
	}
	out := make([]*types.Episode, 0, len(kvs))
	for _, kv := range kvs {
		data, err := s.transport.DecodeStored(kv.Value)
		if err != nil {
			return nil, err
		}
		var ep types.Episode
		if err := json.Unmarshal(data, &ep); err != nil {
			return nil, fmt.Errorf("storage: unmarshal episode: %w", err)
		}
		out = append(out, &ep)
	}
	return out, nil
}

// PutPatterns atomically persists episode's updated record alongside its
// newly extracted patterns (spec §6: "store_patterns(episode_id, patterns)
// and episode mutations are atomic"). BatchCommit writes multiple keys in
// one call, so each value is compressed into its own envelope via the
// transport's Compress step directly rather than through Send, which only
// addresses one key at a time.
func (s *EpisodeStore) PutPatterns(ctx context.Context, ep *types.Episode, patterns []*types.Pattern) error {
	epData, err := json.Marshal(ep)
	if err != nil {
		return fmt.Errorf("storage: marshal episode: %w", err)
	}

	ops := make([]BatchOp, 0, len(patterns)+1)
	ops = append(ops, BatchOp{Kind: OpPut, Key: episodeKey(ep.ID), Value: s.envelope(epData)})

	for _, p := range patterns {
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("storage: marshal pattern: %w", err)
		}
		ops = append(ops, BatchOp{Kind: OpPut, Key: patternKey(p.ID), Value: s.envelope(data)})
	}

	return s.backend.BatchCommit(ctx, ops)
}

// envelope compresses data through the transport for a BatchCommit value,
// mirroring what Send would frame for a single-key write.
func (s *EpisodeStore) envelope(data []byte) []byte {
	return s.transport.EncodeEnvelope(data)
}

// GetPattern loads a pattern by id.
func (s *EpisodeStore) GetPattern(ctx context.Context, id uuid.UUID) (*types.Pattern, error) {
	raw, err := s.backend.Get(ctx, patternKey(id))
	if err != nil {
		return nil, err
	}
	data, err := s.transport.DecodeStored(raw)
	if err != nil {
		return nil, err
	}
	var p types.Pattern
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("storage: unmarshal pattern: %w", err)
	}
	return &p, nil
}

// ScanPatterns returns every persisted pattern.
func (s *EpisodeStore) ScanPatterns(ctx context.Context) ([]*types.Pattern, error) {
	kvs, err := s.backend.Scan(ctx, []byte(prefixPattern))
	if err != nil {
		return nil, err
	}
	out := make([]*types.Pattern, 0, len(kvs))
	for _, kv := range kvs {
		data, err := s.transport.DecodeStored(kv.Value)
		if err != nil {
			return nil, err
		}
		var p types.Pattern
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("storage: unmarshal pattern: %w", err)
		}
		out = append(out, &p)
	}
	return out, nil
}

// PutHeuristic persists a heuristic, replacing any prior version.
func (s *EpisodeStore) PutHeuristic(ctx context.Context, h *types.Heuristic) error {
	data, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("storage: marshal heuristic: %w", err)
	}
	_, err = s.transport.Send(ctx, heuristicKey(h.HeuristicID), data)
	return err
}

// GetHeuristic loads a heuristic by id.
func (s *EpisodeStore) GetHeuristic(ctx context.Context, id uuid.UUID) (*types.Heuristic, error) {
	raw, err := s.backend.Get(ctx, heuristicKey(id))
	if err != nil {
		return nil, err
	}
	data, err := s.transport.DecodeStored(raw)
	if err != nil {
		return nil, err
	}
	var h types.Heuristic
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("storage: unmarshal heuristic: %w", err)
	}
	return &h, nil
}

// ScanHeuristics returns every persisted heuristic.
func (s *EpisodeStore) ScanHeuristics(ctx context.Context) ([]*types.Heuristic, error) {
	kvs, err := s.backend.Scan(ctx, []byte(prefixHeuristic))
	if err != nil {
		return nil, err
	}
	out := make([]*types.Heuristic, 0, len(kvs))
	for _, kv := range kvs {
		data, err := s.transport.DecodeStored(kv.Value)
		if err != nil {
			return nil, err
		}
		var h types.Heuristic
		if err := json.Unmarshal(data, &h); err != nil {
			return nil, fmt.Errorf("storage: unmarshal heuristic: %w", err)
		}
		out = append(out, &h)
	}
	return out, nil
}

// PutRelationship persists a relationship.
func (s *EpisodeStore) PutRelationship(ctx context.Context, rel *types.EpisodeRelationship) error {
	data, err := json.Marshal(rel)
	if err != nil {
		return fmt.Errorf("storage: marshal relationship: %w", err)
	}
	_, err = s.transport.Send(ctx, relationshipKey(rel.ID), data)
	return err
}

// DeleteRelationship removes a relationship.
func (s *EpisodeStore) DeleteRelationship(ctx context.Context, id uuid.UUID) error {
	return s.backend.Delete(ctx, relationshipKey(id))
}

// ScanRelationships returns every persisted relationship, used to rehydrate
// the RelationshipManager on startup.
func (s *EpisodeStore) ScanRelationships(ctx context.Context) ([]*types.EpisodeRelationship, error) {
	kvs, err := s.backend.Scan(ctx, []byte(prefixRelationship))
	if err != nil {
		return nil, err
	}
	out := make([]*types.EpisodeRelationship, 0, len(kvs))
	for _, kv := range kvs {
		data, err := s.transport.DecodeStored(kv.Value)
		if err != nil {
			return nil, err
		}
		var rel types.EpisodeRelationship
		if err := json.Unmarshal(data, &rel); err != nil {
			return nil, fmt.Errorf("storage: unmarshal relationship: %w", err)
		}
		out = append(out, &rel)
	}
	return out, nil
}

// Close releases the transport's and backend's resources.
func (s *EpisodeStore) Close() error {
	s.transport.Close()
	return s.backend.Close()
}
