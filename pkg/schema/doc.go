// Package schema checks the values written to input cells.
//
// A schema maps input cells to types. Built-in types are text, int, number
// and bool, plus lists of them and custom validators:
//
//	s := schema.Schema{
//	    domain.Cell("year_dropdown", "value"): schema.Int(),
//	    domain.Cell("country_multi", "value"): schema.List(schema.Text()),
//	}
//
//	if err := schema.ValidateEvent(s, ev); err != nil {
//	    // reject the event
//	}
//
// Schemas can also be parsed from type names, as definition files do:
//
//	s, err := schema.ParseTypeMap(map[string]string{
//	    "year_dropdown.value": "int",
//	    "country_multi.value": "[text]",
//	})
package schema
