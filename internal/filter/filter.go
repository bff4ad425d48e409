// Package filter decides which types, properties and navigations are eligible
// for the change log. A change the filter rejects never reaches the recorder.
package filter

// Navigation describes a relationship property pointing from one tracked type
// to another.
type Navigation struct {
	SourceType string
	Property   string
	TargetType string
}

// Filter is the logging policy consulted before a change is recorded.
type Filter interface {
	ShouldLogType(typeName string) bool
	ShouldLogProperty(typeName, property string) bool
	ShouldLogNavigation(nav Navigation) bool
}

// AllowAll logs everything. It is the default policy.
type AllowAll struct{}

func (AllowAll) ShouldLogType(string) bool { return true }

func (AllowAll) ShouldLogProperty(string, string) bool { return true }

func (AllowAll) ShouldLogNavigation(Navigation) bool { return true }

// Blacklist logs everything except the listed types and properties. A
// navigation is excluded when its property is excluded or its target type is.
type Blacklist struct {
	rules Rules
}

// NewBlacklist creates a Blacklist from rules.
func NewBlacklist(rules Rules) *Blacklist {
	return &Blacklist{rules: rules}
}

func (b *Blacklist) ShouldLogType(typeName string) bool {
	return !b.rules.hasType(typeName)
}

func (b *Blacklist) ShouldLogProperty(typeName, property string) bool {
	return b.ShouldLogType(typeName) && !b.rules.hasProperty(typeName, property)
}

func (b *Blacklist) ShouldLogNavigation(nav Navigation) bool {
	return b.ShouldLogProperty(nav.SourceType, nav.Property) && !b.rules.hasType(nav.TargetType)
}

// Whitelist logs only the listed types, and within them only the listed
// properties.
type Whitelist struct {
	rules Rules
}

// NewWhitelist creates a Whitelist from rules.
func NewWhitelist(rules Rules) *Whitelist {
	return &Whitelist{rules: rules}
}

func (w *Whitelist) ShouldLogType(typeName string) bool {
	return w.rules.hasType(typeName)
}

func (w *Whitelist) ShouldLogProperty(typeName, property string) bool {
	return w.ShouldLogType(typeName) && w.rules.hasProperty(typeName, property)
}

func (w *Whitelist) ShouldLogNavigation(nav Navigation) bool {
	return w.ShouldLogProperty(nav.SourceType, nav.Property)
}

// Func adapts plain functions to Filter. Nil functions allow everything.
type Func struct {
	Type       func(typeName string) bool
	Property   func(typeName, property string) bool
	Navigation func(nav Navigation) bool
}

func (f Func) ShouldLogType(typeName string) bool {
	return f.Type == nil || f.Type(typeName)
}

func (f Func) ShouldLogProperty(typeName, property string) bool {
	return f.Property == nil || f.Property(typeName, property)
}

func (f Func) ShouldLogNavigation(nav Navigation) bool {
	return f.Navigation == nil || f.Navigation(nav)
}
