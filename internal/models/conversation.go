package models

// Direction classifies a conversation from the viewer's perspective.
type Direction string

const (
	// DirectionReceived holds conversations started by buyers on the viewer's listings.
	DirectionReceived Direction = "received"
	// DirectionSent holds conversations the viewer started as a prospective buyer.
	DirectionSent Direction = "sent"
)

// SenderMe marks messages written by the current viewer.
const SenderMe = "me"

// ConversationIndex is the nested conversation mirror rendered by the inbox.
type ConversationIndex struct {
	Received ProductMap `json:"received"`
	Sent     ProductMap `json:"sent"`
}

// ProductMap maps a listing id to its conversations.
type ProductMap map[string]ProductEntry

// ProductEntry groups every counterpart thread on one listing.
type ProductEntry struct {
	ProductDetails ProductDetails `json:"productDetails"`
	Users          UserMap        `json:"users"`
}

// ProductDetails is the listing summary shown in the conversation list.
type ProductDetails struct {
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
}

// UserMap maps a counterpart user id to the thread with that user.
type UserMap map[string]UserThread

// UserThread is one conversation with a counterpart. ChatID stays empty until
// the server allocates a room for it.
type UserThread struct {
	Name     string    `json:"name"`
	ChatID   string    `json:"chatId"`
	Messages []Message `json:"messages"`
}

// Message is a normalized chat line.
type Message struct {
	Text      string `json:"text"`
	Sender    string `json:"sender"`
	Timestamp string `json:"timestamp"`
}

// Partition is one direction of a ConversationIndex.
type Partition struct {
	Direction Direction
	Products  ProductMap
}

// Directions returns the index partitions in display order, received first.
func (idx ConversationIndex) Directions() []Partition {
	return []Partition{
		{Direction: DirectionReceived, Products: idx.Received},
		{Direction: DirectionSent, Products: idx.Sent},
	}
}

// ThreadRef identifies a thread in a navigable location.
type ThreadRef struct {
	ChatID    string `json:"chatId,omitempty"`
	ProductID string `json:"productId,omitempty"`
	UserID    string `json:"userId,omitempty"`
}

// IsZero reports whether the reference points nowhere.
func (r ThreadRef) IsZero() bool {
	return r.ChatID == "" && r.ProductID == "" && r.UserID == ""
}
