package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/bnema/tempvc/internal/domain"
	"github.com/bnema/tempvc/internal/ports"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	StatePathKey    = "voice.state_path"
	stateFileMode   = 0o600
	stateDirMode    = 0o700
	stateDirName    = "tempvc"
	stateFileName   = "state.toml"
	tempFilePattern = ".state-*.toml.tmp"
)

type StateRepository struct {
	statePath string
	mu        *sync.RWMutex
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

var _ ports.StateRepository = (*StateRepository)(nil)

func DefaultStatePath() string {
	return filepath.Join(xdg.StateHome, stateDirName, stateFileName)
}

func NewStateRepository(cfg *viper.Viper) (*StateRepository, error) {
	if cfg == nil {
		cfg = viper.New()
	}
	cfg.SetDefault(StatePathKey, DefaultStatePath())

	statePath := cfg.GetString(StatePathKey)
	if statePath == "" {
		return nil, errors.New("state path is empty")
	}
	statePath, err := normalizeStatePath(statePath)
	if err != nil {
		return nil, err
	}

	return &StateRepository{statePath: statePath, mu: lockForPath(statePath)}, nil
}

func (r *StateRepository) Path() string {
	return r.statePath
}

func (r *StateRepository) Load(ctx context.Context) (domain.ManagerState, error) {
	if err := ctx.Err(); err != nil {
		return domain.ManagerState{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return domain.ManagerState{}, err
	}

	return fromSchema(file), nil
}

func (r *StateRepository) Save(ctx context.Context, state domain.ManagerState) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	return r.writeSchema(toSchema(state))
}

func (r *StateRepository) readSchema() (fileSchema, error) {
	data, err := os.ReadFile(r.statePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fileSchema{Version: currentSchemaVersion}, nil
		}
		return fileSchema{}, fmt.Errorf("read state file: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return fileSchema{}, fmt.Errorf("decode state file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return fileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func (r *StateRepository) writeSchema(file fileSchema) error {
	file.applyDefaults()

	if err := os.MkdirAll(filepath.Dir(r.statePath), stateDirMode); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode state file: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(r.statePath), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp state file: %w", err)
	}

	if err := tempFile.Chmod(stateFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp state file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp state file: %w", err)
	}

	if err := os.Rename(tempName, r.statePath); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}

	cleanup = false

	return nil
}

func normalizeStatePath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve state path: %w", err)
	}

	return filepath.Clean(absPath), nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}

func toSchema(state domain.ManagerState) fileSchema {
	file := fileSchema{Version: currentSchemaVersion}

	for trigger, next := range state.Counters {
		file.Counters = append(file.Counters, counterSchema{TriggerChannelID: string(trigger), Next: next})
	}
	sort.Slice(file.Counters, func(i, j int) bool {
		return file.Counters[i].TriggerChannelID < file.Counters[j].TriggerChannelID
	})

	for _, channel := range state.Channels {
		file.Channels = append(file.Channels, channelSchema{
			ChannelID:        string(channel.ChannelID),
			GuildID:          string(channel.GuildID),
			TriggerChannelID: string(channel.TriggerChannelID),
			Name:             channel.Name,
			CreatedAt:        formatTime(channel.CreatedAt),
		})
	}

	return file
}

func fromSchema(file fileSchema) domain.ManagerState {
	state := domain.ManagerState{
		Counters: make(map[domain.ChannelID]int, len(file.Counters)),
		Channels: make([]domain.TrackedChannel, 0, len(file.Channels)),
	}

	for _, counter := range file.Counters {
		if counter.TriggerChannelID == "" {
			continue
		}
		state.Counters[domain.ChannelID(counter.TriggerChannelID)] = counter.Next
	}

	for _, channel := range file.Channels {
		if channel.ChannelID == "" {
			continue
		}
		state.Channels = append(state.Channels, domain.TrackedChannel{
			ChannelID:        domain.ChannelID(channel.ChannelID),
			GuildID:          domain.GuildID(channel.GuildID),
			TriggerChannelID: domain.ChannelID(channel.TriggerChannelID),
			Name:             channel.Name,
			CreatedAt:        parseTime(channel.CreatedAt),
			State:            domain.ChannelStateActive,
		})
	}

	return state
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}

	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}

	return parsed
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}

	return value.UTC().Format(time.RFC3339)
}
