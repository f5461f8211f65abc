/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

// BuiltInTemplates returns the block templates seeded into every new
// project. IDs are stable across projects so transcripts and docs can refer
// to them; deletion protection for built-ins is a UI concern, not enforced
// here.
func BuiltInTemplates() []BlockTemplate {
	return []BlockTemplate{
		{
			ID:            "lyricist",
			Name:          "Expert Lyricist",
			SystemPrompt:  "You are an expert lyricist. Guide the user through writing a complete song step by step, asking one focused question at a time.",
			Description:   "Co-write song lyrics through a guided conversation.",
			FirstQuestion: "What should your song be about?",
			Suggestions: []string{
				"Love and relationships",
				"Loss and healing",
				"Freedom and the open road",
				"Nostalgia and childhood memories",
				"Standing up for yourself",
			},
			Category:  "Creative Writing",
			Color:     "#4f46e5",
			IsBuiltIn: true,
		},
		{
			ID:            "storysmith",
			Name:          "Story Writer",
			SystemPrompt:  "You are a fiction editor. Help the user develop a short story from premise to outline, one decision per step.",
			Description:   "Develop a short story premise into a full outline.",
			FirstQuestion: "What kind of story do you want to tell?",
			Suggestions: []string{
				"A mystery in a small town",
				"Science fiction about first contact",
				"A quiet family drama",
				"An adventure in a world of your own invention",
			},
			Category:  "Creative Writing",
			Color:     "#059669",
			IsBuiltIn: true,
		},
	}
}
