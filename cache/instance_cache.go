package cache

import (
	"sort"
	"time"

	"github.com/mohitkumar/procflow/model"
	c "github.com/patrickmn/go-cache"
)

// InstanceCache holds live instance trees by root instance id. Running trees
// never expire; trees that reached a terminal status are kept for
// terminalExpiration so late readers still find them without storage.
type InstanceCache struct {
	cache              *c.Cache
	terminalExpiration time.Duration
}

func NewInstanceCache(terminalExpiration time.Duration) *InstanceCache {
	if terminalExpiration <= 0 {
		terminalExpiration = c.NoExpiration
	}
	return &InstanceCache{
		cache:              c.New(c.NoExpiration, 10*time.Minute),
		terminalExpiration: terminalExpiration,
	}
}

func (ch *InstanceCache) Put(tree *model.InstanceTree) {
	expiration := c.NoExpiration
	if root := tree.Root(); root != nil && root.Status.IsTerminal() {
		expiration = ch.terminalExpiration
	}
	ch.cache.Set(tree.RootId, tree, expiration)
}

func (ch *InstanceCache) Get(rootId string) (*model.InstanceTree, bool) {
	v, found := ch.cache.Get(rootId)
	if !found {
		return nil, false
	}
	return v.(*model.InstanceTree), true
}

func (ch *InstanceCache) Delete(rootId string) {
	ch.cache.Delete(rootId)
}

// RootIds lists the cached root ids, sorted.
func (ch *InstanceCache) RootIds() []string {
	items := ch.cache.Items()
	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (ch *InstanceCache) Len() int {
	return ch.cache.ItemCount()
}
