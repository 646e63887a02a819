package identity

// DefaultHashCost is the bcrypt cost used when no WithHashCost option is set
const DefaultHashCost = 12

var hashCost = DefaultHashCost

func passwordHashCost() int {
	return hashCost
}
