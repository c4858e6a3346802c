package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/brooks/internal/core/domain"
	"github.com/samirrijal/brooks/internal/session"
)

// buildSchema creates the GraphQL read model over the session view state,
// plus the few mutations that do not need a request body.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	coordinatesType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Coordinates",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lng": &graphql.Field{Type: graphql.Float},
		},
	})

	pinType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Pin",
		Fields: graphql.Fields{
			"id":           &graphql.Field{Type: graphql.String},
			"location":     &graphql.Field{Type: coordinatesType},
			"mapPrecision": &graphql.Field{Type: graphql.String},
			"distanceM":    &graphql.Field{Type: graphql.Float},
		},
	})

	themeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Theme",
		Fields: graphql.Fields{
			"key":        &graphql.Field{Type: graphql.String},
			"label":      &graphql.Field{Type: graphql.String},
			"overridden": &graphql.Field{Type: graphql.Boolean},
		},
	})

	locationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Location",
		Fields: graphql.Fields{
			"status":      &graphql.Field{Type: graphql.String},
			"label":       &graphql.Field{Type: graphql.String},
			"error":       &graphql.Field{Type: graphql.String},
			"coordinates": &graphql.Field{Type: coordinatesType},
		},
	})

	mapType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Map",
		Fields: graphql.Fields{
			"provider":    &graphql.Field{Type: graphql.String},
			"label":       &graphql.Field{Type: graphql.String},
			"configured":  &graphql.Field{Type: graphql.Boolean},
			"placeholder": &graphql.Field{Type: graphql.String},
			"pinCount":    &graphql.Field{Type: graphql.Int},
			"loading":     &graphql.Field{Type: graphql.Boolean},
			"error":       &graphql.Field{Type: graphql.String},
		},
	})

	sessionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Session",
		Fields: graphql.Fields{
			"gate":       &graphql.Field{Type: graphql.String},
			"authStatus": &graphql.Field{Type: graphql.String},
			"authError":  &graphql.Field{Type: graphql.String},
			"center":     &graphql.Field{Type: coordinatesType},
			"location":   &graphql.Field{Type: locationType},
			"theme":      &graphql.Field{Type: themeType},
			"map":        &graphql.Field{Type: mapType},
			"pins":       &graphql.Field{Type: graphql.NewList(pinType)},
			"bbox":       &graphql.Field{Type: graphql.String},
			"creating":   &graphql.Field{Type: graphql.Boolean},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"session": &graphql.Field{
				Type:        sessionType,
				Description: "Current session view state",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return sessionToGraph(deps.Session.Snapshot()), nil
				},
			},
			"themes": &graphql.Field{
				Type:        graphql.NewList(themeType),
				Description: "Themes available for override",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					out := make([]map[string]interface{}, 0, len(domain.Themes))
					for _, k := range domain.Themes {
						out = append(out, map[string]interface{}{"key": string(k), "label": k.Label(), "overridden": false})
					}
					return out, nil
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"relocate": &graphql.Field{
				Type:        sessionType,
				Description: "Move the map center and reload pins",
				Args: graphql.FieldConfigArgument{
					"lat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lng": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					c := domain.Coordinates{Lat: p.Args["lat"].(float64), Lng: p.Args["lng"].(float64)}
					if err := deps.Session.Relocate(p.Context, c); err != nil && domain.KindOf(err) != domain.KindQuery {
						return nil, err
					}
					return sessionToGraph(deps.Session.Snapshot()), nil
				},
			},
			"setTheme": &graphql.Field{
				Type:        themeType,
				Description: `Override the theme; "auto" clears the override`,
				Args: graphql.FieldConfigArgument{
					"theme": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					name := p.Args["theme"].(string)
					if name == "auto" {
						deps.Session.ClearThemeOverride()
					} else if k, ok := domain.ParseThemeKey(name); ok {
						deps.Session.SetThemeOverride(k)
					} else {
						return nil, domain.ValidationError("theme", "unknown theme: "+name)
					}
					return themeToGraph(deps.Session.Snapshot().Theme), nil
				},
			},
			"refreshPins": &graphql.Field{
				Type:        graphql.NewList(pinType),
				Description: "Reload pins around the current center",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					pins, err := deps.Session.RefreshPins(p.Context)
					if err != nil {
						return nil, err
					}
					return pinsToGraph(pins), nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}

func coordinatesToGraph(c domain.Coordinates) map[string]interface{} {
	return map[string]interface{}{"lat": c.Lat, "lng": c.Lng}
}

func themeToGraph(t session.ThemeView) map[string]interface{} {
	return map[string]interface{}{"key": string(t.Key), "label": t.Label, "overridden": t.Overridden}
}

func pinsToGraph(pins []domain.Pin) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(pins))
	for _, p := range pins {
		m := map[string]interface{}{
			"id":           p.ID,
			"location":     coordinatesToGraph(p.Location),
			"mapPrecision": string(p.MapPrecision),
		}
		if p.DistanceM != nil {
			m["distanceM"] = *p.DistanceM
		}
		out = append(out, m)
	}
	return out
}

func sessionToGraph(vs session.ViewState) map[string]interface{} {
	loc := map[string]interface{}{
		"status": string(vs.Location.Status),
		"label":  vs.Location.Label,
		"error":  vs.Location.Error,
	}
	if vs.Location.Coordinates != nil {
		loc["coordinates"] = coordinatesToGraph(*vs.Location.Coordinates)
	}
	m := map[string]interface{}{
		"gate":       string(vs.Gate),
		"authStatus": string(vs.Auth.Status),
		"authError":  vs.Auth.Error,
		"center":     coordinatesToGraph(vs.Center),
		"location":   loc,
		"theme":      themeToGraph(vs.Theme),
		"map": map[string]interface{}{
			"provider":    string(vs.Map.Provider),
			"label":       vs.Map.Label,
			"configured":  vs.Map.Configured,
			"placeholder": vs.Map.Placeholder,
			"pinCount":    vs.Map.PinCount,
			"loading":     vs.Map.Loading,
			"error":       vs.Map.Error,
		},
		"pins":     pinsToGraph(vs.Pins),
		"creating": vs.Creation.Open,
	}
	if vs.Box != nil {
		m["bbox"] = vs.Box.String()
	}
	return m
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
