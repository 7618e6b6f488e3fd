// Package core provides the certificate generation pipeline.
//
// This package contains all generation logic independent of any UI or
// transport layer. It is used by the HTTP server, the certgen CLI and tests
// without modification.
//
// # Pipeline
//
// A batch flows through these stages:
//
//  1. [ParseRecordsFormat] reads a CSV or XLSX table and normalizes headers
//     into canonical keys, resolving the recipient name through an alias
//     table ("Full Name", "student_name", ...).
//  2. [DecodeTemplate] decodes the template image once per batch.
//  3. [ResolveLayout] turns an optional [StoredLayout] into a [RenderSpec].
//     A malformed layout falls back to defaults and is logged, never fatal.
//  4. [Renderer] draws each name centered on the anchor, on a bounded worker
//     pool run by [Generator].
//  5. [Assembler] packages the certificates as one multi-page PDF or as
//     per-item files, zipped when there is more than one.
//
// [Service] wraps the generator with a concurrency cap ([BatchLimiter]),
// a timeout and stored-layout lookup.
//
// # Fonts
//
// [FontBook] resolves a family through configured font directories and
// fallbacks down to the embedded Go fonts and finally a bitmap face, so
// rendering never fails for font reasons.
//
// # Error Handling
//
// Failures are [*Error] values tagged with an [ErrorKind]. Input, empty
// result and assembly errors reject the batch; layout, font and per-row
// problems degrade and are logged. [MapError] maps any error to a
// user-facing message and code (INP, CFG, GEN, ASM, BAT, ERR000).
package core
