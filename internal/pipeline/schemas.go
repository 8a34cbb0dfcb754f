package pipeline

import (
	"leadetl/internal/resolve"
	"leadetl/internal/schema"
)

// Working column names shared by several stages.
const (
	colRefID      = "DM Reference ID"
	colFirstName  = "First Name"
	colLastName   = "Last Name"
	colZip        = "Zip"
	colZip1       = "Zip_1"
	colZip2       = "Zip_2"
	colDebt       = "Debt Amount"
	colGender     = "gender"
	colMailNumber = "Mail_number"
	colNewLead    = "New_lead"
	colPurchased  = "Lead purchased"
	colLeadSource = "Lead Source"
	colStatus     = "Status"
	colDateAdded  = "Date Added"
	colPhone      = "Phone"
	colCallerID   = "Caller ID"
	colCRMStatus  = "CRM Status"

	toBeScored = "to_be_Scored"
)

// Stage boundary contracts. Empty cells are always accepted.
var (
	prospectsSchema = schema.Schema{Name: "prospects", Fields: []schema.Field{
		{Name: colFirstName},
		{Name: colLastName},
		{Name: "City"},
		{Name: "State"},
		{Name: colZip},
		{Name: colDebt},
		{Name: colPurchased, Type: schema.Date},
		{Name: colMailNumber, Type: schema.Digits},
		{Name: colNewLead},
	}}

	pdrSchema = schema.Schema{Name: "pdr", Fields: []schema.Field{
		{Name: colRefID, Type: schema.RefID},
		{Name: colFirstName},
		{Name: colLastName},
		{Name: "City"},
		{Name: "State"},
		{Name: colZip},
		{Name: colDebt},
		{Name: colMailNumber, Type: schema.Digits},
	}}

	leadsSchema = schema.Schema{Name: "leads", Fields: []schema.Field{
		{Name: resolve.ColUUID, Type: schema.UUID},
		{Name: resolve.ColLeadID, Type: schema.Digits},
		{Name: colFirstName},
		{Name: colLastName},
		{Name: colZip, Type: schema.Digits},
		{Name: colDebt},
	}}

	lookupSchema = schema.Schema{Name: "lookup", Fields: []schema.Field{
		{Name: resolve.ColUUID, Type: schema.UUID},
		{Name: colRefID, Type: schema.RefID},
	}}

	callCenterSchema = schema.Schema{Name: "call_center", Fields: []schema.Field{
		{Name: "Date"},
		{Name: "Queue"},
		{Name: "Trunk"},
		{Name: colCallerID, Type: schema.Phone},
		{Name: "Call Time"},
		{Name: "Exit Reason"},
		{Name: colCRMStatus},
	}}

	descriptionSchema = schema.Schema{Name: "description", Fields: []schema.Field{
		{Name: resolve.ColUUID, Type: schema.UUID},
		{Name: colZip1, Type: schema.Zip5},
		{Name: colZip2, Type: schema.Zip4},
		{Name: colPhone, Type: schema.Digits},
	}}
)
