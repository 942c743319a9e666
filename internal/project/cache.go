package project

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// cachedDirectory は取得したユーザー情報を一定時間保持するUserDirectory。
// キャッシュに無いIDだけをnextに問い合わせる。
type cachedDirectory struct {
	next  UserDirectory
	cache *expirable.LRU[string, UserProfile]
}

// NewCachedUserDirectory はnextの結果を最大size件、ttlの間保持するUserDirectoryを返す。
func NewCachedUserDirectory(next UserDirectory, size int, ttl time.Duration) UserDirectory {
	return &cachedDirectory{
		next:  next,
		cache: expirable.NewLRU[string, UserProfile](size, nil, ttl),
	}
}

// Profiles はキャッシュ済みの情報とnextから取得した情報を合わせて返す。
func (d *cachedDirectory) Profiles(ctx context.Context, ids []string) (map[string]UserProfile, error) {
	profiles := make(map[string]UserProfile, len(ids))
	var missing []string
	for _, id := range ids {
		if p, ok := d.cache.Get(id); ok {
			profiles[id] = p
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return profiles, nil
	}

	fetched, err := d.next.Profiles(ctx, missing)
	if err != nil {
		return nil, err
	}
	for id, p := range fetched {
		d.cache.Add(id, p)
		profiles[id] = p
	}
	return profiles, nil
}
