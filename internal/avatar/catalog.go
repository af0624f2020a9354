// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package avatar

// Avatar describes one selectable avatar model.
type Avatar struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ModelPath string `json:"modelPath"`
}

// builtins is the shipped avatar roster. The scene loads the glTF asset at
// ModelPath relative to its static root.
var builtins = []Avatar{
	{ID: "default", Name: "Aria", ModelPath: "assets/avatars/aria.glb"},
	{ID: "robot", Name: "Bolt", ModelPath: "assets/avatars/bolt.glb"},
	{ID: "fox", Name: "Kita", ModelPath: "assets/avatars/kita.glb"},
}

// Catalog returns the selectable avatars. The returned slice is a copy.
func Catalog() []Avatar {
	out := make([]Avatar, len(builtins))
	copy(out, builtins)
	return out
}

// Lookup returns the avatar with the given id, or false if unknown.
func Lookup(id string) (Avatar, bool) {
	for _, a := range builtins {
		if a.ID == id {
			return a, true
		}
	}
	return Avatar{}, false
}
