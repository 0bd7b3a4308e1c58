// Package admin authorizes privileged operations against a fixed
// allow-list supplied at startup. The list is configuration, not data:
// there is no mutation path.
package admin

type Authority struct {
	ids map[int64]struct{}
}

func New(ids []int64) *Authority {
	m := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return &Authority{ids: m}
}

func (a *Authority) IsAdmin(actorID int64) bool {
	_, ok := a.ids[actorID]
	return ok
}
