package rollout

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// sessionStateVersion is the current on-disk format version
const sessionStateVersion = 1

// SessionState holds the restorable counters of a collection session.
// NumTimesteps is the monotonic process-lifetime step counter;
// TotalEpisodes counts completed episodes across rollouts.
//
// The state is persisted as a versioned record of named fields rather
// than raw struct bytes, so that fields renamed across releases can be
// migrated on load instead of silently dropped.
type SessionState struct {
	NumTimesteps  int
	TotalEpisodes int
}

// sessionStateRecord is the serialized form of SessionState
type sessionStateRecord struct {
	Version int
	Fields  map[string]int64
}

// legacyFieldNames maps field names written by earlier releases onto
// their current names
var legacyFieldNames = map[string]string{
	"n_timesteps": "num_timesteps",
	"episode_num": "total_episodes",
}

// GobEncode encodes the state as a versioned field record
func (s *SessionState) GobEncode() ([]byte, error) {
	record := sessionStateRecord{
		Version: sessionStateVersion,
		Fields: map[string]int64{
			"num_timesteps":  int64(s.NumTimesteps),
			"total_episodes": int64(s.TotalEpisodes),
		},
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(record); err != nil {
		return nil, fmt.Errorf("gobEncode: %v", err)
	}
	return buf.Bytes(), nil
}

// GobDecode decodes a versioned field record, migrating legacy field
// names to their current equivalents
func (s *SessionState) GobDecode(data []byte) error {
	var record sessionStateRecord
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&record); err != nil {
		return fmt.Errorf("gobDecode: %v", err)
	}
	if record.Version > sessionStateVersion {
		return fmt.Errorf("gobDecode: unsupported session state version %v",
			record.Version)
	}

	fields := make(map[string]int64, len(record.Fields))
	for name, value := range record.Fields {
		if current, ok := legacyFieldNames[name]; ok {
			name = current
		}
		fields[name] = value
	}

	numTimesteps, ok := fields["num_timesteps"]
	if !ok {
		return fmt.Errorf("gobDecode: missing field num_timesteps")
	}
	totalEpisodes, ok := fields["total_episodes"]
	if !ok {
		return fmt.Errorf("gobDecode: missing field total_episodes")
	}

	s.NumTimesteps = int(numTimesteps)
	s.TotalEpisodes = int(totalEpisodes)
	return nil
}
