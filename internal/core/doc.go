// Package core loads one ASV survey dataset into the survey database.
//
// An import reads the event, measurement (eMoF) and occurrence sources from
// an input directory, derives stable keys for every record and writes six
// target tables inside a single transaction:
//
//	dataset -> sampling_event -> mixs, emof
//	                          -> asv -> occurrence
//
// # Entity Registry
//
// The target tables are listed in dependency order by [Entities]. Each
// [Entity] names its key column and the [Strategy] used to write it:
//
//   - InsertReturning: row by row, reading back the stored key. Used for
//     dataset and sampling_event, whose keys other entities reference.
//   - CopyAppend: one COPY into the target table.
//   - CopyDistinct: COPY into a scratch table, then insert only the rows the
//     target does not already hold. Used for asv, which is shared by every
//     dataset.
//
// # Transactions
//
// [Coordinator] owns the connection and transaction of a run. Any error,
// panic or cancellation rolls the whole import back; nothing is ever
// partially committed. [Importer] reads and checks every source before the
// database is contacted.
//
// # Error Handling
//
// Failures are [importerr.Error] values with a kind. [MapError] turns them
// into coded messages for the command line:
//
//   - CFG001, SRC001, CON001: problems found before any write
//   - KEY001, SCH001: source data that cannot be mapped to the tables
//   - LOAD001-LOAD004: writes the database rejected
//
// # Metrics
//
// [Metrics] counts rows per entity and records the outcome of the run. The
// registry is written to a node-exporter textfile when configured.
package core
