package utils

import (
  "strconv"
  "strings"
)

// Slugify lowers text and replaces every non-alphanumeric run with a single
// hyphen, matching the storage-key layout `category/title-slug/img_N.jpg`.
func Slugify(text string) string {
  var b strings.Builder
  lastHyphen := true
  for _, r := range strings.ToLower(strings.TrimSpace(text)) {
    switch {
    case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
      b.WriteRune(r)
      lastHyphen = false
    default:
      if !lastHyphen {
        b.WriteRune('-')
        lastHyphen = true
      }
    }
  }
  return strings.TrimRight(b.String(), "-")
}

// StorageKey derives the object key for the n-th image of a product.
func StorageKey(category, title string, position int) string {
  categorySlug := Slugify(category)
  if categorySlug == "" {
    categorySlug = "uncategorized"
  }
  titleSlug := Slugify(title)
  if titleSlug == "" {
    titleSlug = "untitled"
  }
  return categorySlug + "/" + titleSlug + "/img_" + strconv.Itoa(position) + ".jpg"
}
