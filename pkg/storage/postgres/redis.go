package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/workspaces/pkg/workspace"
)

// RedisConfig configures the Redis connection
type RedisConfig struct {
	URL        string
	Password   string
	DB         int
	MaxRetries int
	PoolSize   int
	KeyPrefix  string
}

// NewRedisClient parses the URL, applies overrides and pings the server
func NewRedisClient(config RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	if config.Password != "" {
		opts.Password = config.Password
	}
	if config.DB > 0 {
		opts.DB = config.DB
	}
	if config.MaxRetries > 0 {
		opts.MaxRetries = config.MaxRetries
	}
	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// upsertScript writes a record hash unless the stored revision is higher,
// then adds index set members. KEYS[1] is the record hash, KEYS[2..] are
// sets paired with ARGV[3..].
var upsertScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'revision')
if cur and tonumber(cur) > tonumber(ARGV[2]) then
	return 0
end
redis.call('HSET', KEYS[1], 'data', ARGV[1], 'revision', ARGV[2])
for i = 2, #KEYS do
	redis.call('SADD', KEYS[i], ARGV[i + 1])
end
return 1
`)

// RedisRepository implements workspace.Repository on Redis. Each record is
// a hash holding its JSON and revision; sets index members and invites by
// workspace and workspaces by user.
type RedisRepository struct {
	client *redis.Client
	prefix string
}

// NewRedisRepository creates a repository over client. Keys are prefixed
// with prefix, "workspaces:" when empty.
func NewRedisRepository(client *redis.Client, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = "workspaces:"
	}
	return &RedisRepository{client: client, prefix: prefix}
}

func (r *RedisRepository) key(parts ...string) string {
	k := r.prefix
	for i, p := range parts {
		if i > 0 {
			k += ":"
		}
		k += p
	}
	return k
}

// Client returns the underlying client for health checks
func (r *RedisRepository) Client() *redis.Client {
	return r.client
}

// Close closes the Redis connection
func (r *RedisRepository) Close() error {
	return r.client.Close()
}

func (r *RedisRepository) upsert(ctx context.Context, recordKey string, v interface{}, revision int64, sets ...[2]string) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	keys := []string{recordKey}
	args := []interface{}{string(data), revision}
	for _, set := range sets {
		keys = append(keys, set[0])
		args = append(args, set[1])
	}
	if err := upsertScript.Run(ctx, r.client, keys, args...).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("failed to upsert %s: %w", recordKey, err)
	}
	return nil
}

// UpsertWorkspace writes a workspace record
func (r *RedisRepository) UpsertWorkspace(ctx context.Context, rec workspace.WorkspaceRecord) error {
	return r.upsert(ctx, r.key("workspace", rec.Workspace.ID), rec, rec.Workspace.Revision)
}

// UpsertMember writes a member record and indexes it under its workspace
// and user
func (r *RedisRepository) UpsertMember(ctx context.Context, rec workspace.MemberRecord) error {
	m := rec.Member
	return r.upsert(ctx, r.key("member", m.ID), rec, m.Revision,
		[2]string{r.key("workspace", m.WorkspaceID, "members"), m.ID},
		[2]string{r.key("workspace", m.WorkspaceID, "users"), m.UserID},
		[2]string{r.key("user", m.UserID, "workspaces"), m.WorkspaceID},
	)
}

// UpsertInvite writes an invite record and indexes it under its workspace
func (r *RedisRepository) UpsertInvite(ctx context.Context, rec workspace.InviteRecord) error {
	inv := rec.Invite
	return r.upsert(ctx, r.key("invite", inv.ID), rec, inv.Revision,
		[2]string{r.key("workspace", inv.WorkspaceID, "invites"), inv.ID},
	)
}

// ListWorkspaces returns the workspaces userID holds a member record in
func (r *RedisRepository) ListWorkspaces(ctx context.Context, userID string) ([]workspace.WorkspaceRecord, error) {
	ids, err := r.client.SMembers(ctx, r.key("user", userID, "workspaces")).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}
	sort.Strings(ids)

	var out []workspace.WorkspaceRecord
	for _, id := range ids {
		var rec workspace.WorkspaceRecord
		found, err := r.load(ctx, r.key("workspace", id), &rec)
		if err != nil {
			return nil, err
		}
		if found {
			out = append(out, rec)
		}
	}
	return out, nil
}

// ListMembers returns the member records of workspaceID when userID holds
// one of them
func (r *RedisRepository) ListMembers(ctx context.Context, userID, workspaceID string) ([]workspace.MemberRecord, error) {
	ids, err := r.scopedIDs(ctx, userID, workspaceID, "members")
	if err != nil {
		return nil, err
	}

	var out []workspace.MemberRecord
	for _, id := range ids {
		var rec workspace.MemberRecord
		found, err := r.load(ctx, r.key("member", id), &rec)
		if err != nil {
			return nil, err
		}
		if found {
			out = append(out, rec)
		}
	}
	return out, nil
}

// ListInvites returns the invite records of workspaceID when userID holds a
// member record in it
func (r *RedisRepository) ListInvites(ctx context.Context, userID, workspaceID string) ([]workspace.InviteRecord, error) {
	ids, err := r.scopedIDs(ctx, userID, workspaceID, "invites")
	if err != nil {
		return nil, err
	}

	var out []workspace.InviteRecord
	for _, id := range ids {
		var rec workspace.InviteRecord
		found, err := r.load(ctx, r.key("invite", id), &rec)
		if err != nil {
			return nil, err
		}
		if found {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *RedisRepository) scopedIDs(ctx context.Context, userID, workspaceID, index string) ([]string, error) {
	isMember, err := r.client.SIsMember(ctx, r.key("workspace", workspaceID, "users"), userID).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}
	if !isMember {
		return nil, nil
	}
	ids, err := r.client.SMembers(ctx, r.key("workspace", workspaceID, index)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", index, err)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *RedisRepository) load(ctx context.Context, key string, v interface{}) (bool, error) {
	data, err := r.client.HGet(ctx, key, "data").Result()
	if err == redis.Nil {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("redis get failed: %w", err)
	}
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return true, nil
}
