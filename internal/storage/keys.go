package storage

import "github.com/google/uuid"

// Key namespaces for the JSON-blob records persisted through a Backend.
const (
	prefixEpisode      = "episode/"
	prefixPattern       = "pattern/"
	prefixHeuristic    = "heuristic/"
	prefixRelationship = "relationship/"
)

func episodeKey(id uuid.UUID) []byte      { return []byte(prefixEpisode + id.String()) }
func patternKey(id uuid.UUID) []byte      { return []byte(prefixPattern + id.String()) }
func heuristicKey(id uuid.UUID) []byte    { return []byte(prefixHeuristic + id.String()) }
func relationshipKey(id uuid.UUID) []byte { return []byte(prefixRelationship + id.String()) }
