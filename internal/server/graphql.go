package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/graphql-go/graphql"

	"github.com/zephyrtronium/derivcalc"
)

// newSchema builds the GraphQL schema. The only query evaluates an
// expression.
func (s *Server) newSchema() graphql.Schema {
	strList := graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(graphql.String)))
	stepType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Step",
		Fields: graphql.Fields{
			"index":          &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"before":         &graphql.Field{Type: strList},
			"after":          &graphql.Field{Type: strList},
			"expandedSymbol": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"at":             &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"renderedBefore": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"production":     &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		},
	})
	resultType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Result",
		Fields: graphql.Fields{
			"expression":    &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"success":       &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
			"value":         &graphql.Field{Type: graphql.String},
			"errorMessages": &graphql.Field{Type: strList},
			"errorKind":     &graphql.Field{Type: graphql.String},
			"steps":         &graphql.Field{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(stepType)))},
		},
	})
	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"evaluate": &graphql.Field{
				Type: graphql.NewNonNull(resultType),
				Args: graphql.FieldConfigArgument{
					"expression": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					expr, _ := p.Args["expression"].(string)
					res := s.evaluate(p.Context, expr)
					return responseToGraphQL(NewResponse(expr, res)), nil
				},
			},
		},
	})
	schema, err := graphql.NewSchema(graphql.SchemaConfig{Query: queryType})
	if err != nil {
		panic(fmt.Sprintf("failed to create graphql schema: %v", err))
	}
	return schema
}

// handleGraphQL executes a GraphQL query.
func (s *Server) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query         string                 `json:"query"`
		Variables     map[string]interface{} `json:"variables"`
		OperationName string                 `json:"operationName"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "problems parsing JSON"})
		return
	}

	result := graphql.Do(graphql.Params{
		Schema:         s.schema,
		RequestString:  req.Query,
		VariableValues: req.Variables,
		OperationName:  req.OperationName,
		Context:        r.Context(),
	})
	writeJSON(w, http.StatusOK, result)
}

// responseToGraphQL converts a Response to a map keyed by GraphQL field
// names for the default resolvers.
func responseToGraphQL(r Response) map[string]interface{} {
	steps := make([]interface{}, len(r.Steps))
	for i, st := range r.Steps {
		steps[i] = stepToGraphQL(st)
	}
	m := map[string]interface{}{
		"expression":    r.Expression,
		"success":       r.Success,
		"value":         nil,
		"errorMessages": r.Errors,
		"errorKind":     nil,
		"steps":         steps,
	}
	if r.Value != nil {
		m["value"] = *r.Value
	}
	if r.Kind != "" {
		m["errorKind"] = r.Kind
	}
	return m
}

func stepToGraphQL(st derivcalc.Step) map[string]interface{} {
	return map[string]interface{}{
		"index":          st.Index,
		"before":         st.Before,
		"after":          st.After,
		"expandedSymbol": string(st.Symbol),
		"at":             st.At,
		"renderedBefore": st.Marked,
		"production":     st.Production,
	}
}
