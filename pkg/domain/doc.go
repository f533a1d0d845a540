/*
Package domain contains the core domain models of the Mosaic reactive engine.

It defines the fundamental entities of the property graph, such as Cells, Values,
Handlers and Snapshots. This package is kept pure and free of external dependencies
like I/O or persistence, following Hexagonal Architecture principles.

# Key Entities

  - CellID: Addresses a single UI property slot as (component, property).
  - Value: A closed tagged variant (number, text, list, records, figure, table, ...).
  - HandlerSpec: Declares which cells a function reads (Inputs, State) and writes (Outputs).
  - Result: What a handler returns. Either an update or a suppression.
  - Event: The only way the outside world mutates input cells.
  - Snapshot: A copy of every cell's value, version and status, exposed to renderers.
*/
package domain
