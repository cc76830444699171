package schema

// Canonical entity keys. Configuration may rename the underlying table
// (EntityName) but the keys below are how code and plugins address entities.
const (
	EntitySubject            = "subject"
	EntityDomain             = "domain"
	EntityPurpose            = "purpose"
	EntityConsentPolicy      = "consentPolicy"
	EntityConsent            = "consent"
	EntityPurposeJunction    = "purposeJunction"
	EntityRecord             = "record"
	EntityWithdrawal         = "withdrawal"
	EntityAuditLog           = "auditLog"
	EntityGeoLocation        = "geoLocation"
	EntityConsentGeoLocation = "consentGeoLocation"
)

// EntitySchema is the merged definition of one entity: its configured table
// name, the prefix used for generated ids, the ordered field map, and its
// position in dependency order (lower creates first; consent depends on
// subject, domain, purpose and policy existing).
type EntitySchema struct {
	EntityName   string
	EntityPrefix string
	Fields       *FieldMap
	Order        int
	// CompositeUnique lists multi-column uniqueness constraints by field
	// key. Single-column uniqueness lives on the Field itself.
	CompositeUnique [][]string
}

// Set maps canonical entity keys to merged schemas. Built once per
// configuration and treated as read-only afterwards.
type Set map[string]*EntitySchema

// builtin describes one statically known entity before merging.
type builtin struct {
	key    string
	name   string
	prefix string
	order  int
	fields func() *FieldMap
}

func builtins() []builtin {
	return []builtin{
		{EntitySubject, "subject", "sbj", 1, subjectFields},
		{EntityDomain, "domain", "dom", 2, domainFields},
		{EntityPurpose, "consentPurpose", "pur", 3, purposeFields},
		{EntityConsentPolicy, "consentPolicy", "pol", 4, policyFields},
		{EntityConsent, "consent", "cns", 5, consentFields},
		{EntityPurposeJunction, "consentPurposeJunction", "pjn", 6, junctionFields},
		{EntityRecord, "consentRecord", "rec", 7, recordFields},
		{EntityWithdrawal, "consentWithdrawal", "wdr", 8, withdrawalFields},
		{EntityAuditLog, "auditLog", "log", 9, auditLogFields},
		{EntityGeoLocation, "geoLocation", "geo", 10, geoLocationFields},
		{EntityConsentGeoLocation, "consentGeoLocation", "cgl", 11, consentGeoLocationFields},
	}
}

// compositeUniques declares multi-column constraints for built-in entities.
// A consent links each purpose at most once.
func compositeUniques() map[string][][]string {
	return map[string][][]string{
		EntityPurposeJunction: {{"consentId", "purposeId"}},
	}
}

func subjectFields() *FieldMap {
	m := NewFieldMap()
	m.Set("id", NewField(TypeString, Required(), Unique(), SystemOnly()))
	m.Set("isIdentified", NewField(TypeBool, Required(), WithDefault(Literal(false))))
	m.Set("externalId", NewField(TypeString, Unique()))
	m.Set("identityProvider", NewField(TypeString))
	m.Set("lastIpAddress", NewField(TypeString, Hidden(), WithInputTransform(digestValue)))
	m.Set("subjectTimezone", NewField(TypeTimezone))
	m.Set("createdAt", NewField(TypeDate, SystemOnly(), WithDefault(Now())))
	m.Set("updatedAt", NewField(TypeDate, SystemOnly(), WithDefault(Now())))
	return m
}

func domainFields() *FieldMap {
	m := NewFieldMap()
	m.Set("id", NewField(TypeString, Required(), Unique(), SystemOnly()))
	m.Set("name", NewField(TypeString, Required(), Unique()))
	m.Set("description", NewField(TypeString))
	m.Set("allowedOrigins", NewField(TypeStringArray,
		WithDefault(Literal([]string{})),
		WithInputTransform(normalizeOrigins)))
	m.Set("isVerified", NewField(TypeBool, Required(), WithDefault(Literal(false))))
	m.Set("isActive", NewField(TypeBool, Required(), WithDefault(Literal(true))))
	m.Set("createdAt", NewField(TypeDate, SystemOnly(), WithDefault(Now())))
	m.Set("updatedAt", NewField(TypeDate, SystemOnly(), WithDefault(Now())))
	return m
}

func purposeFields() *FieldMap {
	m := NewFieldMap()
	m.Set("id", NewField(TypeString, Required(), Unique(), SystemOnly()))
	m.Set("code", NewField(TypeString, Required(), Unique()))
	m.Set("name", NewField(TypeString, Required()))
	m.Set("description", NewField(TypeString))
	m.Set("isEssential", NewField(TypeBool, Required(), WithDefault(Literal(false))))
	m.Set("dataCategory", NewField(TypeString, WithDefault(Literal("functional"))))
	m.Set("legalBasis", NewField(TypeString, WithDefault(Literal("consent"))))
	m.Set("isActive", NewField(TypeBool, Required(), WithDefault(Literal(true))))
	m.Set("createdAt", NewField(TypeDate, SystemOnly(), WithDefault(Now())))
	m.Set("updatedAt", NewField(TypeDate, SystemOnly(), WithDefault(Now())))
	return m
}

func policyFields() *FieldMap {
	m := NewFieldMap()
	m.Set("id", NewField(TypeString, Required(), Unique(), SystemOnly()))
	m.Set("version", NewField(TypeString, Required()))
	m.Set("type", NewField(TypeString, WithDefault(Literal("cookie_banner"))))
	m.Set("name", NewField(TypeString))
	m.Set("effectiveDate", NewField(TypeDate, WithDefault(Now())))
	m.Set("expirationDate", NewField(TypeDate))
	m.Set("content", NewField(TypeString))
	m.Set("contentHash", NewField(TypeString))
	m.Set("isActive", NewField(TypeBool, Required(), WithDefault(Literal(true))))
	m.Set("createdAt", NewField(TypeDate, SystemOnly(), WithDefault(Now())))
	return m
}

func consentFields() *FieldMap {
	m := NewFieldMap()
	m.Set("id", NewField(TypeString, Required(), Unique(), SystemOnly()))
	m.Set("subjectId", NewField(TypeString, Required(), References(EntitySubject, RequiredRef())))
	m.Set("domainId", NewField(TypeString, Required(), References(EntityDomain, RequiredRef())))
	m.Set("policyId", NewField(TypeString, References(EntityConsentPolicy)))
	m.Set("purposeIds", NewField(TypeStringArray, WithDefault(Literal([]string{}))))
	m.Set("status", NewField(TypeString, Required(), WithDefault(Literal("active"))))
	m.Set("metadata", NewField(TypeJSON))
	// Raw network identifiers are evidentiary; they are stored but never
	// leave the service in API responses.
	m.Set("ipAddress", NewField(TypeString, Hidden()))
	m.Set("userAgent", NewField(TypeString, Hidden()))
	m.Set("history", NewField(TypeJSON))
	m.Set("givenAt", NewField(TypeDate, SystemOnly(), WithDefault(Now())))
	m.Set("validUntil", NewField(TypeDate))
	m.Set("withdrawnAt", NewField(TypeDate))
	m.Set("isActive", NewField(TypeBool, Required(), WithDefault(Literal(true))))
	m.Set("createdAt", NewField(TypeDate, SystemOnly(), WithDefault(Now())))
	m.Set("updatedAt", NewField(TypeDate, SystemOnly(), WithDefault(Now())))
	return m
}

func junctionFields() *FieldMap {
	m := NewFieldMap()
	m.Set("id", NewField(TypeString, Required(), Unique(), SystemOnly()))
	m.Set("consentId", NewField(TypeString, Required(), References(EntityConsent, RequiredRef())))
	m.Set("purposeId", NewField(TypeString, Required(), References(EntityPurpose, RequiredRef())))
	m.Set("status", NewField(TypeString, Required(), WithDefault(Literal("active"))))
	m.Set("createdAt", NewField(TypeDate, SystemOnly(), WithDefault(Now())))
	m.Set("updatedAt", NewField(TypeDate, SystemOnly(), WithDefault(Now())))
	return m
}

func recordFields() *FieldMap {
	m := NewFieldMap()
	m.Set("id", NewField(TypeString, Required(), Unique(), SystemOnly()))
	m.Set("subjectId", NewField(TypeString, Required(), References(EntitySubject, RequiredRef())))
	m.Set("consentId", NewField(TypeString, References(EntityConsent)))
	m.Set("actionType", NewField(TypeString, Required()))
	m.Set("details", NewField(TypeJSON))
	m.Set("createdAt", NewField(TypeDate, SystemOnly(), WithDefault(Now())))
	return m
}

func withdrawalFields() *FieldMap {
	m := NewFieldMap()
	m.Set("id", NewField(TypeString, Required(), Unique(), SystemOnly()))
	m.Set("consentId", NewField(TypeString, Required(), References(EntityConsent, RequiredRef())))
	m.Set("subjectId", NewField(TypeString, Required(), References(EntitySubject, RequiredRef())))
	m.Set("revokedAt", NewField(TypeDate, SystemOnly(), WithDefault(Now())))
	m.Set("reason", NewField(TypeString))
	m.Set("method", NewField(TypeString, WithDefault(Literal("api"))))
	m.Set("actor", NewField(TypeString))
	m.Set("ipAddress", NewField(TypeString, Hidden()))
	m.Set("userAgent", NewField(TypeString, Hidden()))
	m.Set("metadata", NewField(TypeJSON))
	m.Set("createdAt", NewField(TypeDate, SystemOnly(), WithDefault(Now())))
	return m
}

func auditLogFields() *FieldMap {
	m := NewFieldMap()
	m.Set("id", NewField(TypeString, Required(), Unique(), SystemOnly()))
	m.Set("entityType", NewField(TypeString, Required()))
	m.Set("entityId", NewField(TypeString, Required()))
	m.Set("actionType", NewField(TypeString, Required()))
	m.Set("subjectId", NewField(TypeString, References(EntitySubject)))
	m.Set("ipAddress", NewField(TypeString, Hidden()))
	m.Set("userAgent", NewField(TypeString, Hidden()))
	m.Set("changes", NewField(TypeJSON))
	m.Set("metadata", NewField(TypeJSON))
	m.Set("createdAt", NewField(TypeDate, SystemOnly(), WithDefault(Now())))
	return m
}

func geoLocationFields() *FieldMap {
	m := NewFieldMap()
	m.Set("id", NewField(TypeString, Required(), Unique(), SystemOnly()))
	m.Set("countryCode", NewField(TypeString, Required()))
	m.Set("countryName", NewField(TypeString))
	m.Set("regionCode", NewField(TypeString))
	m.Set("regionName", NewField(TypeString))
	m.Set("regulatoryZones", NewField(TypeStringArray, WithDefault(Literal([]string{}))))
	m.Set("createdAt", NewField(TypeDate, SystemOnly(), WithDefault(Now())))
	return m
}

func consentGeoLocationFields() *FieldMap {
	m := NewFieldMap()
	m.Set("id", NewField(TypeString, Required(), Unique(), SystemOnly()))
	m.Set("consentId", NewField(TypeString, Required(), References(EntityConsent, RequiredRef())))
	m.Set("ip", NewField(TypeString, Hidden()))
	m.Set("countryCode", NewField(TypeString))
	m.Set("regionCode", NewField(TypeString))
	m.Set("latitude", NewField(TypeNumber))
	m.Set("longitude", NewField(TypeNumber))
	m.Set("createdAt", NewField(TypeDate, SystemOnly(), WithDefault(Now())))
	return m
}
