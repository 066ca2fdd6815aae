package mongodb

const (
	BootcampsCollection = "bootcamps"
	CoursesCollection   = "courses"
	ReviewsCollection   = "reviews"
	UsersCollection     = "users"
)
