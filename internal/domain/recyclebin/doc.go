// Package recyclebin models soft-deleted properties, tenants and landlords and
// the bulk selection used to restore or permanently delete them. Every kind
// difference (listing path, id key, restore and delete requests) lives in the
// Kinds table so callers handle all three kinds through one code path.
package recyclebin
