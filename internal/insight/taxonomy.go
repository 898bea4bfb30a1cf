package insight

import "strings"

// Category names a (category, subcategory) slot and how its datum is stored.
type Category struct {
	Name        string
	Subcategory string
	DataType    DataType
}

// Categories is the canonical taxonomy presented to the extractor. Names
// here are already normalized; Normalize is still applied to everything the
// model returns before a name reaches a store path.
var Categories = []Category{
	{Name: "basic", Subcategory: "name", DataType: DataTypeSingleValue},
	{Name: "basic", Subcategory: "birth_year", DataType: DataTypeSingleValue},
	{Name: "basic", Subcategory: "gender", DataType: DataTypeSingleValue},
	{Name: "basic", Subcategory: "languages", DataType: DataTypeCollection},
	{Name: "location", Subcategory: "city", DataType: DataTypeSingleValue},
	{Name: "location", Subcategory: "country", DataType: DataTypeSingleValue},
	{Name: "work", Subcategory: "job_title", DataType: DataTypeSingleValue},
	{Name: "work", Subcategory: "company", DataType: DataTypeSingleValue},
	{Name: "work", Subcategory: "skills", DataType: DataTypeCollection},
	{Name: "education", Subcategory: "degree", DataType: DataTypeSingleValue},
	{Name: "education", Subcategory: "field", DataType: DataTypeSingleValue},
	{Name: "hobbies", Subcategory: "sports", DataType: DataTypeCollection},
	{Name: "hobbies", Subcategory: "music", DataType: DataTypeCollection},
	{Name: "hobbies", Subcategory: "interests", DataType: DataTypeCollection},
	{Name: "preferences", Subcategory: "food", DataType: DataTypeCollection},
	{Name: "preferences", Subcategory: "communication_style", DataType: DataTypeSingleValue},
	{Name: "health", Subcategory: "allergies", DataType: DataTypeCollection},
	{Name: "health", Subcategory: "diet", DataType: DataTypeSingleValue},
	{Name: "relationships", Subcategory: "family", DataType: DataTypeCollection},
	{Name: "goals", Subcategory: "short_term", DataType: DataTypeCollection},
	{Name: "goals", Subcategory: "long_term", DataType: DataTypeCollection},
}

// Normalize canonicalizes a category or subcategory name. It is the only way
// names enter store path components.
func Normalize(s string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", "_"))
}

// ValidDataType reports whether the extractor returned a known data type tag.
func ValidDataType(dt DataType) bool {
	return dt == DataTypeSingleValue || dt == DataTypeCollection
}
