package inbox

import (
	"sort"

	"motors-client/internal/models"
)

// Location addresses one thread in the index.
type Location struct {
	Direction models.Direction `json:"direction"`
	ProductID string           `json:"productId"`
	UserID    string           `json:"userId"`
}

type thread struct {
	name     string
	chatID   string
	messages []models.Message
}

// index is the normalized form of models.ConversationIndex. byChat resolves an
// inbound chatId to its thread without scanning.
type index struct {
	products map[models.Direction]map[string]models.ProductDetails
	threads  map[Location]*thread
	byChat   map[string]Location
}

func newIndex() *index {
	return &index{
		products: map[models.Direction]map[string]models.ProductDetails{
			models.DirectionReceived: {},
			models.DirectionSent:     {},
		},
		threads: make(map[Location]*thread),
		byChat:  make(map[string]Location),
	}
}

func indexFrom(snapshot models.ConversationIndex) *index {
	idx := newIndex()
	for _, part := range snapshot.Directions() {
		dir := part.Direction
		for _, productID := range sortedKeys(part.Products) {
			entry := part.Products[productID]
			idx.products[dir][productID] = entry.ProductDetails
			for _, userID := range sortedKeys(entry.Users) {
				ut := entry.Users[userID]
				loc := Location{Direction: dir, ProductID: productID, UserID: userID}
				idx.put(loc, &thread{
					name:     ut.Name,
					chatID:   ut.ChatID,
					messages: append([]models.Message(nil), ut.Messages...),
				})
			}
		}
	}
	return idx
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// put stores t at loc. A chatId already bound to another location keeps its
// first binding.
func (idx *index) put(loc Location, t *thread) {
	idx.threads[loc] = t
	if t.chatID == "" {
		return
	}
	if _, taken := idx.byChat[t.chatID]; !taken {
		idx.byChat[t.chatID] = loc
	}
}

// find resolves a product/counterpart pair, received side first.
func (idx *index) find(productID, userID string) (Location, bool) {
	for _, dir := range []models.Direction{models.DirectionReceived, models.DirectionSent} {
		loc := Location{Direction: dir, ProductID: productID, UserID: userID}
		if _, ok := idx.threads[loc]; ok {
			return loc, true
		}
	}
	return Location{}, false
}

func (idx *index) render() models.ConversationIndex {
	out := models.ConversationIndex{
		Received: models.ProductMap{},
		Sent:     models.ProductMap{},
	}
	targets := map[models.Direction]models.ProductMap{
		models.DirectionReceived: out.Received,
		models.DirectionSent:     out.Sent,
	}
	for dir, products := range idx.products {
		for productID, details := range products {
			targets[dir][productID] = models.ProductEntry{ProductDetails: details, Users: models.UserMap{}}
		}
	}
	for loc, t := range idx.threads {
		entry, ok := targets[loc.Direction][loc.ProductID]
		if !ok {
			entry = models.ProductEntry{Users: models.UserMap{}}
			targets[loc.Direction][loc.ProductID] = entry
		}
		entry.Users[loc.UserID] = t.view()
	}
	return out
}

func (t *thread) view() models.UserThread {
	msgs := make([]models.Message, len(t.messages))
	copy(msgs, t.messages)
	return models.UserThread{Name: t.name, ChatID: t.chatID, Messages: msgs}
}
