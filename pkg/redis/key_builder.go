package redis

import "strings"

// KeyBuilder builds cache keys of the form namespace:context:entity[:attribute].
type KeyBuilder struct {
	namespace string
	context   string
}

// NewKeyBuilder creates a KeyBuilder scoped to namespace and context.
func NewKeyBuilder(namespace, context string) *KeyBuilder {
	return &KeyBuilder{
		namespace: strings.ToLower(namespace),
		context:   strings.ToLower(context),
	}
}

// Build creates a cache key for entity, optionally scoped by attribute.
func (kb *KeyBuilder) Build(entity, attribute string) string {
	parts := []string{kb.namespace, kb.context, strings.ToLower(entity)}
	if attribute != "" {
		parts = append(parts, strings.ToLower(attribute))
	}
	return strings.Join(parts, ":")
}
