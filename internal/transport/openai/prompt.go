package openai

import "strings"

const promptTemplate = `You are an AI Asset Scout. Your task is to take a user's short input and create ONE highly optimized search query with appropriate image filters.

Analyze the input and determine:
1. What the user wants (logo, product photo, icon, artwork, etc.)
2. The best single search query that will find a high-quality, relevant image
3. The appropriate Serper image filters

Available filters:
- img_size: "large" (high-res photos/products), "medium" (general use), "icon" (small icons/favicons)
- img_type: "photo" (real photographs), "clipart" (logos, icons, vector-style), "lineart" (simple drawings), "face" (portraits)

Guidelines:
- For LOGOS/BRANDS: Use img_type "clipart", include "official", "transparent", "vector" or "SVG" in query
- For PRODUCTS: Use img_type "photo", img_size "large", include "studio", "product shot", "white background"
- For ICONS: Use img_size "icon" or "medium", img_type "clipart"
- For PHOTOS/SCENES: Use img_type "photo", img_size "large"

Respond with ONLY a JSON object (no markdown, no extra text):
{"query": "your optimized search query", "img_size": "large|medium|icon|null", "img_type": "photo|clipart|lineart|face|null"}

Example for "BMW logo":
{"query": "BMW official logo transparent SVG vector", "img_size": "large", "img_type": "clipart"}

Example for "iPhone 15":
{"query": "iPhone 15 Pro product photo studio white background", "img_size": "large", "img_type": "photo"}
`

const promptSuffix = "User input: "

// buildPrompt assembles template, optional learning context and the request.
func buildPrompt(request, learningContext string) string {
	var b strings.Builder
	b.Grow(len(promptTemplate) + len(learningContext) + len(promptSuffix) + len(request))
	b.WriteString(promptTemplate)
	b.WriteString(learningContext)
	b.WriteString(promptSuffix)
	b.WriteString(request)
	return b.String()
}

// stripFences removes a surrounding markdown code block, if any.
func stripFences(content string) string {
	s := strings.TrimSpace(content)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
