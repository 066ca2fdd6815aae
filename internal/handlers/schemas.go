package handlers

import "github.com/devcamper/bootcamp-api/internal/query"

var bootcampSchema = query.Schema{
	"_id":              query.ObjectID,
	"name":             query.String,
	"slug":             query.String,
	"description":      query.String,
	"website":          query.String,
	"phone":            query.String,
	"email":            query.String,
	"location":         query.String,
	"location.city":    query.String,
	"location.state":   query.String,
	"location.zipcode": query.String,
	"location.country": query.String,
	"careers":          query.StringList,
	"averageRating":    query.Number,
	"averageCost":      query.Number,
	"photo":            query.String,
	"housing":          query.Bool,
	"jobAssistance":    query.Bool,
	"jobGuarantee":     query.Bool,
	"acceptGi":         query.Bool,
	"user":             query.ObjectID,
	"createdAt":        query.Date,
}

var courseSchema = query.Schema{
	"_id":                  query.ObjectID,
	"title":                query.String,
	"description":          query.String,
	"weeks":                query.String,
	"tuition":              query.Number,
	"minimumSkill":         query.String,
	"scholarshipAvailable": query.Bool,
	"bootcamp":             query.ObjectID,
	"user":                 query.ObjectID,
	"createdAt":            query.Date,
}

var reviewSchema = query.Schema{
	"_id":       query.ObjectID,
	"title":     query.String,
	"text":      query.String,
	"rating":    query.Number,
	"bootcamp":  query.ObjectID,
	"user":      query.ObjectID,
	"createdAt": query.Date,
}

// userSchema leaves out password so it can be neither filtered nor selected.
var userSchema = query.Schema{
	"_id":       query.ObjectID,
	"name":      query.String,
	"email":     query.String,
	"role":      query.String,
	"createdAt": query.Date,
}

var (
	expandCourses = query.Expansion{
		From:         "courses",
		LocalField:   "_id",
		ForeignField: "bootcamp",
		As:           "courses",
		Fields:       []string{"title", "tuition"},
		Many:         true,
	}
	expandBootcamp = query.Expansion{
		From:       "bootcamps",
		LocalField: "bootcamp",
		As:         "bootcamp",
		Fields:     []string{"name", "description"},
	}
)
