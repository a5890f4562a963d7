package auth

import (
	"slices"

	"github.com/lalith-99/vectorvault/internal/models"
)

// Action is something a principal may attempt inside its organization.
type Action string

const (
	ActionDocumentRead    Action = "document:read"
	ActionDocumentWrite   Action = "document:write"
	ActionDocumentDelete  Action = "document:delete"
	ActionSearch          Action = "search"
	ActionCategoryRead    Action = "category:read"
	ActionCategoryWrite   Action = "category:write"
	ActionCollectionRead  Action = "collection:read"
	ActionCollectionWrite Action = "collection:write"
	ActionSharedViewRead  Action = "shared_view:read"
	ActionSharedViewWrite Action = "shared_view:write"
	ActionAPIKeyRead      Action = "api_key:read"
	ActionAPIKeyManage    Action = "api_key:manage"
	ActionUsageRead       Action = "usage:read"
	ActionEventsSubscribe Action = "events:subscribe"
)

var readActions = []Action{
	ActionDocumentRead,
	ActionSearch,
	ActionCategoryRead,
	ActionCollectionRead,
	ActionSharedViewRead,
	ActionEventsSubscribe,
}

var editorActions = append(slices.Clone(readActions),
	ActionDocumentWrite,
	ActionDocumentDelete,
	ActionCategoryWrite,
	ActionCollectionWrite,
	ActionSharedViewWrite,
)

// roleActions mirrors the row-level security policies: viewers read,
// editors manage content, admins additionally see and manage keys and see
// usage.
var roleActions = map[models.Role][]Action{
	models.RoleViewer: readActions,
	models.RoleEditor: editorActions,
	models.RoleAdmin: append(slices.Clone(editorActions),
		ActionAPIKeyRead,
		ActionAPIKeyManage,
		ActionUsageRead,
	),
}

// Can is the single authorization decision for session principals.
func Can(role models.Role, action Action) bool {
	return slices.Contains(roleActions[role], action)
}

// apiKeyDefaults is what a key with an empty permission list may do.
var apiKeyDefaults = []Action{ActionDocumentRead, ActionSearch}

// apiKeyGrantable bounds what a key can ever be granted. Key management,
// usage and the live feed stay session-only.
var apiKeyGrantable = []Action{
	ActionDocumentRead,
	ActionDocumentWrite,
	ActionDocumentDelete,
	ActionSearch,
	ActionCategoryRead,
	ActionCategoryWrite,
	ActionCollectionRead,
	ActionCollectionWrite,
	ActionSharedViewRead,
	ActionSharedViewWrite,
}

// KeyCan decides for API key principals. Permissions are the action strings
// stored on the key.
func KeyCan(permissions []string, action Action) bool {
	if !slices.Contains(apiKeyGrantable, action) {
		return false
	}
	if slices.Contains(apiKeyDefaults, action) {
		return true
	}
	return slices.Contains(permissions, string(action))
}

// ValidKeyPermission reports whether p may be stored on an API key.
func ValidKeyPermission(p string) bool {
	return slices.Contains(apiKeyGrantable, Action(p))
}
