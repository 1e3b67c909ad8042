package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const DefaultRedisKeyPrefix = "formulastore"

// insertFormulasScript adds every ARGV entry to its sorted set unless present and assigns
// a surrogate id to each new member. ARGV[1] is the number of product entries that
// follow; the remaining entries are reactants. Redis does not undo the writes of a
// script that fails halfway, so every key is checked before the first write.
var insertFormulasScript = redis.NewScript(`
local expected = {'zset', 'hash', 'string', 'zset', 'hash', 'string'}
for k = 1, #KEYS do
	local actual = redis.call('TYPE', KEYS[k]).ok
	if actual ~= 'none' and actual ~= expected[k] then
		return redis.error_reply('WRONGTYPE key ' .. KEYS[k] .. ' holds a ' .. actual .. ', expected ' .. expected[k])
	end
	if actual == 'string' and not string.match(redis.call('GET', KEYS[k]), '^%d+$') then
		return redis.error_reply('ERR id sequence ' .. KEYS[k] .. ' is not an integer')
	end
end

local products = tonumber(ARGV[1])
local result = {}
for i = 2, #ARGV do
	local set, ids, seq = KEYS[1], KEYS[2], KEYS[3]
	if i - 1 > products then
		set, ids, seq = KEYS[4], KEYS[5], KEYS[6]
	end
	if redis.call('ZADD', set, 'NX', 0, ARGV[i]) == 1 then
		redis.call('HSET', ids, ARGV[i], redis.call('INCR', seq))
		result[#result + 1] = 1
	else
		result[#result + 1] = 0
	end
end
return result
`)

type RedisDatabase struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisDatabase connects to the server described by a redis:// or rediss:// URL.
func NewRedisDatabase(connectionString, keyPrefix string) (*RedisDatabase, error) {
	options, err := redis.ParseURL(connectionString)
	if err != nil {
		return nil, fmt.Errorf("invalid redis connection string: %w", err)
	}
	if keyPrefix == "" {
		keyPrefix = DefaultRedisKeyPrefix
	}

	return &RedisDatabase{
		client:    redis.NewClient(options),
		keyPrefix: keyPrefix,
	}, nil
}

func (r *RedisDatabase) setKey(kind FormulaKind) (string, error) {
	table, err := kind.tableName()
	if err != nil {
		return "", err
	}
	return r.keyPrefix + ":" + table, nil
}

func (r *RedisDatabase) imageKey() string {
	return r.keyPrefix + ":original_image"
}

// CreateDatabase only verifies connectivity, keys are created on first write.
func (r *RedisDatabase) CreateDatabase(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to reach redis: %w", err)
	}
	return nil
}

func (r *RedisDatabase) DoesDatabaseExist(ctx context.Context) bool {
	return r.client.Ping(ctx).Err() == nil
}

func (r *RedisDatabase) Close() error {
	return r.client.Close()
}

func (r *RedisDatabase) GetFormulas(ctx context.Context, kind FormulaKind) ([]*Formula, error) {
	key, err := r.setKey(kind)
	if err != nil {
		return nil, err
	}

	members, err := r.client.ZRangeByLex(ctx, key, &redis.ZRangeBy{Min: "-", Max: "+"}).Result()
	if err != nil {
		return nil, err
	}
	formulas := make([]*Formula, 0, len(members))
	if len(members) == 0 {
		return formulas, nil
	}

	ids, err := r.client.HMGet(ctx, key+":ids", members...).Result()
	if err != nil {
		return nil, err
	}
	for i, member := range members {
		f := &Formula{Formula: member}
		if raw, ok := ids[i].(string); ok {
			if f.ID, err = strconv.ParseInt(raw, 10, 64); err != nil {
				return nil, fmt.Errorf("corrupt id for %s formula %q: %w", kind, member, err)
			}
		}
		formulas = append(formulas, f)
	}
	return formulas, nil
}

func (r *RedisDatabase) InsertFormulas(ctx context.Context, entries []FormulaEntry) ([]bool, error) {
	if len(entries) == 0 {
		return []bool{}, nil
	}
	if err := validateEntries(entries); err != nil {
		return nil, err
	}

	productKey, _ := r.setKey(ProductFormula)
	reactantKey, _ := r.setKey(ReactantFormula)
	keys := []string{
		productKey, productKey + ":ids", productKey + ":seq",
		reactantKey, reactantKey + ":ids", reactantKey + ":seq",
	}

	// the script expects products first, so remember where each entry went
	var products, reactants []int
	for i, entry := range entries {
		switch entry.Kind {
		case ProductFormula:
			products = append(products, i)
		case ReactantFormula:
			reactants = append(reactants, i)
		default:
			return nil, fmt.Errorf("unknown formula kind: %q", string(entry.Kind))
		}
	}
	order := append(products, reactants...)
	args := make([]any, 0, len(entries)+1)
	args = append(args, len(products))
	for _, idx := range order {
		args = append(args, entries[idx].Formula)
	}

	flags, err := insertFormulasScript.Run(ctx, r.client, keys, args...).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("failed to insert formulas: %w", err)
	}
	if len(flags) != len(order) {
		return nil, fmt.Errorf("unexpected insert result length: got %d, expected %d", len(flags), len(order))
	}

	inserted := make([]bool, len(entries))
	for pos, idx := range order {
		inserted[idx] = flags[pos] == 1
	}
	return inserted, nil
}

func (r *RedisDatabase) ReplaceOriginalImage(ctx context.Context, imageData string) error {
	key := r.imageKey()
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, "id", OriginalImageID, "image_data", imageData)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to replace original image: %w", err)
	}
	return nil
}

func (r *RedisDatabase) GetOriginalImage(ctx context.Context) (*OriginalImage, error) {
	data, err := r.client.HGet(ctx, r.imageKey(), "image_data").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrImageNotFound
		}
		return nil, err
	}
	return &OriginalImage{ID: OriginalImageID, ImageData: data}, nil
}

func (r *RedisDatabase) DeleteOriginalImage(ctx context.Context) error {
	return r.client.Del(ctx, r.imageKey()).Err()
}
