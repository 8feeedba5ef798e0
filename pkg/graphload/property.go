package graphload

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
)

// Procedures streaming properties over Flight.
const (
	ProcedureStreamNodeProperty         = "gds.graph.streamNodeProperty"
	ProcedureStreamRelationshipProperty = "gds.graph.streamRelationshipProperty"
)

// PropertyTicket identifies a property stream.
type PropertyTicket struct {
	DatabaseName  string         `json:"database_name"`
	GraphName     string         `json:"graph_name"`
	ProcedureName string         `json:"procedure_name"`
	Configuration map[string]any `json:"configuration"`
}

// NodePropertyTicket is a ticket to stream a node property of a graph.
func NodePropertyTicket(database, graphName, property string) PropertyTicket {
	return PropertyTicket{
		DatabaseName:  database,
		GraphName:     graphName,
		ProcedureName: ProcedureStreamNodeProperty,
		Configuration: map[string]any{"nodeProperty": property},
	}
}

// RelationshipPropertyTicket is a ticket to stream a relationship property of a graph.
func RelationshipPropertyTicket(database, graphName, property string) PropertyTicket {
	return PropertyTicket{
		DatabaseName:  database,
		GraphName:     graphName,
		ProcedureName: ProcedureStreamRelationshipProperty,
		Configuration: map[string]any{"relationshipProperty": property},
	}
}

// StreamProperty downloads a property stream.
//
// Returned records are retained; the caller should Release them.
func StreamProperty(ctx context.Context, getter Getter, ticket PropertyTicket) ([]arrow.Record, error) {
	t, err := json.Marshal(ticket)
	if err != nil {
		return nil, err
	}
	rd, err := getter.GetStream(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("%s on graph %s: %w", ticket.ProcedureName, ticket.GraphName, err)
	}
	defer rd.Release()

	records := []arrow.Record{}
	for rd.Next() {
		rec := rd.Record()
		rec.Retain()
		records = append(records, rec)
	}
	if err := rd.Err(); err != nil {
		for _, r := range records {
			r.Release()
		}
		return nil, fmt.Errorf("%s on graph %s: %w", ticket.ProcedureName, ticket.GraphName, err)
	}
	return records, nil
}
