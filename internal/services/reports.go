package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/clinovia/hospital-api/internal/authz"
	"github.com/clinovia/hospital-api/internal/models"
)

// DayBounds turns YYYY-MM-DD query params into an inclusive range covering
// whole days: start at 00:00:00.000, end at 23:59:59.999. Either side may be
// empty, leaving that side open.
func DayBounds(startStr, endStr string) (start, end time.Time, err error) {
	if startStr != "" {
		start, err = time.Parse("2006-01-02", startStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid startDate %q, use YYYY-MM-DD", startStr)
		}
	}
	if endStr != "" {
		end, err = time.Parse("2006-01-02", endStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid endDate %q, use YYYY-MM-DD", endStr)
		}
		end = end.Add(24*time.Hour - time.Millisecond)
	}
	return start, end, nil
}

// ResolveReportHospital picks the effective hospital filter for a report:
// the explicit query parameter wins, a hospital admin falls back to their own
// hospital, an admin runs unrestricted (zero id).
func ResolveReportHospital(p authz.Principal, explicit string) (primitive.ObjectID, error) {
	if explicit != "" {
		id, err := primitive.ObjectIDFromHex(explicit)
		if err != nil {
			return primitive.NilObjectID, fmt.Errorf("invalid hospital id %q", explicit)
		}
		return id, nil
	}
	switch p.Role {
	case models.RoleAdmin:
		return primitive.NilObjectID, nil
	case models.RoleHospitalAdmin:
		if p.Hospital.IsZero() {
			return primitive.NilObjectID, authz.ErrNoHospital
		}
		return p.Hospital, nil
	default:
		return primitive.NilObjectID, authz.ErrForbidden
	}
}

func dateRange(start, end time.Time) bson.M {
	rng := bson.M{}
	if !start.IsZero() {
		rng["$gte"] = start
	}
	if !end.IsZero() {
		rng["$lte"] = end
	}
	return rng
}

// ReportBucket is one grouped line of a report facet.
type ReportBucket struct {
	Key         string  `bson:"_id" json:"key"`
	Count       int     `bson:"count" json:"count"`
	TotalAmount float64 `bson:"totalAmount" json:"totalAmount,omitempty"`
}

// DoctorBucket is a per-doctor report line joined with the doctor's name.
type DoctorBucket struct {
	Doctor      primitive.ObjectID `bson:"_id" json:"doctor"`
	DoctorName  string             `bson:"doctorName" json:"doctorName"`
	Count       int                `bson:"count" json:"count"`
	TotalAmount float64            `bson:"totalAmount" json:"totalAmount,omitempty"`
}

type FinanceOverall struct {
	Count       int     `bson:"count" json:"count"`
	TotalAmount float64 `bson:"totalAmount" json:"totalAmount"`
}

type FinanceReport struct {
	ByStatus []ReportBucket `bson:"byStatus" json:"byStatus"`
	ByType   []ReportBucket `bson:"byType" json:"byType"`
	ByDay    []ReportBucket `bson:"byDay" json:"byDay"`
	ByDoctor []DoctorBucket `bson:"byDoctor" json:"byDoctor"`
	Overall  FinanceOverall `bson:"-" json:"overall"`
}

// FinancePipeline builds the payment aggregation: one $match, then a $facet
// with the status/type/day/doctor breakdowns and the paid-only grand total.
func FinancePipeline(hospital primitive.ObjectID, start, end time.Time) []bson.M {
	match := bson.M{}
	if !hospital.IsZero() {
		match["hospital"] = hospital
	}
	if rng := dateRange(start, end); len(rng) > 0 {
		match["createdAt"] = rng
	}

	sum := bson.M{"count": bson.M{"$sum": 1}, "totalAmount": bson.M{"$sum": "$amount"}}

	doctorFacet := []bson.M{
		{"$group": bson.M{"_id": "$doctor", "count": bson.M{"$sum": 1}, "totalAmount": bson.M{"$sum": "$amount"}}},
		{"$lookup": bson.M{"from": "users", "localField": "_id", "foreignField": "_id", "as": "doctorInfo"}},
		{"$addFields": bson.M{"doctorName": bson.M{"$ifNull": bson.A{bson.M{"$arrayElemAt": bson.A{"$doctorInfo.name", 0}}, "unknown"}}}},
		{"$project": bson.M{"doctorInfo": 0}},
		{"$sort": bson.M{"totalAmount": -1}},
	}

	return []bson.M{
		{"$match": match},
		{"$facet": bson.M{
			"byStatus": []bson.M{{"$group": merge(bson.M{"_id": "$status"}, sum)}},
			"byType":   []bson.M{{"$group": merge(bson.M{"_id": "$paymentType"}, sum)}},
			"byDay": []bson.M{
				{"$group": merge(bson.M{"_id": bson.M{"$dateToString": bson.M{"format": "%Y-%m-%d", "date": "$createdAt"}}}, sum)},
				{"$sort": bson.M{"_id": 1}},
			},
			"byDoctor": doctorFacet,
			"overall": []bson.M{
				{"$match": bson.M{"status": models.PaymentPaid}},
				{"$group": merge(bson.M{"_id": nil}, sum)},
			},
		}},
	}
}

// RunFinanceReport executes the finance aggregation over the payments
// collection.
func RunFinanceReport(ctx context.Context, db *mongo.Database, hospital primitive.ObjectID, start, end time.Time) (*FinanceReport, error) {
	pipeline := FinancePipeline(hospital, start, end)
	cursor, err := db.Collection("payments").Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var raw []struct {
		ByStatus []ReportBucket   `bson:"byStatus"`
		ByType   []ReportBucket   `bson:"byType"`
		ByDay    []ReportBucket   `bson:"byDay"`
		ByDoctor []DoctorBucket   `bson:"byDoctor"`
		Overall  []FinanceOverall `bson:"overall"`
	}
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, err
	}

	report := &FinanceReport{
		ByStatus: []ReportBucket{},
		ByType:   []ReportBucket{},
		ByDay:    []ReportBucket{},
		ByDoctor: []DoctorBucket{},
	}
	if len(raw) > 0 {
		r := raw[0]
		report.ByStatus = r.ByStatus
		report.ByType = r.ByType
		report.ByDay = r.ByDay
		report.ByDoctor = r.ByDoctor
		if len(r.Overall) > 0 {
			report.Overall = r.Overall[0]
		}
	}
	return report, nil
}

type VisitsOverall struct {
	Count int `bson:"count" json:"count"`
}

type VisitsReport struct {
	ByStatus []ReportBucket `bson:"byStatus" json:"byStatus"`
	ByDay    []ReportBucket `bson:"byDay" json:"byDay"`
	ByDoctor []DoctorBucket `bson:"byDoctor" json:"byDoctor"`
	Overall  VisitsOverall  `bson:"-" json:"overall"`
}

// visitFields normalizes the stored status (trim + lowercase) and derives the
// effective visit date: the update timestamp, else the scheduled date, else
// the creation time.
func visitFields() bson.M {
	return bson.M{"$addFields": bson.M{
		"normStatus": bson.M{"$toLower": bson.M{"$trim": bson.M{"input": bson.M{"$ifNull": bson.A{"$status", ""}}}}},
		"visitDate":  bson.M{"$ifNull": bson.A{"$updatedAt", bson.M{"$ifNull": bson.A{"$appointmentDate", "$createdAt"}}}},
	}}
}

var completedOnly = bson.M{"$match": bson.M{"normStatus": models.AppointmentCompleted}}

// VisitsPipeline builds the patient-visit aggregation. Only appointments
// whose normalized status equals "completed" count as visits; the status
// breakdown covers everything in range for comparison.
func VisitsPipeline(hospital primitive.ObjectID, start, end time.Time) []bson.M {
	pipeline := []bson.M{}
	if !hospital.IsZero() {
		pipeline = append(pipeline, bson.M{"$match": bson.M{"hospital": hospital}})
	}
	pipeline = append(pipeline, visitFields())
	if rng := dateRange(start, end); len(rng) > 0 {
		pipeline = append(pipeline, bson.M{"$match": bson.M{"visitDate": rng}})
	}

	doctorFacet := []bson.M{
		completedOnly,
		{"$group": bson.M{"_id": "$doctor", "count": bson.M{"$sum": 1}}},
		{"$lookup": bson.M{"from": "users", "localField": "_id", "foreignField": "_id", "as": "doctorInfo"}},
		{"$addFields": bson.M{"doctorName": bson.M{"$ifNull": bson.A{bson.M{"$arrayElemAt": bson.A{"$doctorInfo.name", 0}}, "unknown"}}}},
		{"$project": bson.M{"doctorInfo": 0}},
		{"$sort": bson.M{"count": -1}},
	}

	pipeline = append(pipeline, bson.M{"$facet": bson.M{
		"byStatus": []bson.M{{"$group": bson.M{"_id": "$normStatus", "count": bson.M{"$sum": 1}}}},
		"byDay": []bson.M{
			completedOnly,
			{"$group": bson.M{"_id": bson.M{"$dateToString": bson.M{"format": "%Y-%m-%d", "date": "$visitDate"}}, "count": bson.M{"$sum": 1}}},
			{"$sort": bson.M{"_id": 1}},
		},
		"byDoctor": doctorFacet,
		"overall": []bson.M{
			completedOnly,
			{"$count": "count"},
		},
	}})
	return pipeline
}

// RunVisitsReport executes the patient-visit aggregation over the
// appointments collection.
func RunVisitsReport(ctx context.Context, db *mongo.Database, hospital primitive.ObjectID, start, end time.Time) (*VisitsReport, error) {
	pipeline := VisitsPipeline(hospital, start, end)
	cursor, err := db.Collection("appointments").Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var raw []struct {
		ByStatus []ReportBucket  `bson:"byStatus"`
		ByDay    []ReportBucket  `bson:"byDay"`
		ByDoctor []DoctorBucket  `bson:"byDoctor"`
		Overall  []VisitsOverall `bson:"overall"`
	}
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, err
	}

	report := &VisitsReport{
		ByStatus: []ReportBucket{},
		ByDay:    []ReportBucket{},
		ByDoctor: []DoctorBucket{},
	}
	if len(raw) > 0 {
		r := raw[0]
		report.ByStatus = r.ByStatus
		report.ByDay = r.ByDay
		report.ByDoctor = r.ByDoctor
		if len(r.Overall) > 0 {
			report.Overall = r.Overall[0]
		}
	}
	return report, nil
}

const debugSampleSize = 20

// VisitsDebug returns raw samples from before and after the visit filters,
// plus the resolved parameters, for diagnosing report discrepancies.
func VisitsDebug(ctx context.Context, db *mongo.Database, hospital primitive.ObjectID, start, end time.Time) (bson.M, error) {
	coll := db.Collection("appointments")

	baseFilter := bson.M{}
	if !hospital.IsZero() {
		baseFilter["hospital"] = hospital
	}

	preCount, err := coll.CountDocuments(ctx, baseFilter)
	if err != nil {
		return nil, err
	}

	var preSample []bson.M
	cursor, err := coll.Find(ctx, baseFilter, options.Find().SetLimit(debugSampleSize))
	if err != nil {
		return nil, err
	}
	if err := cursor.All(ctx, &preSample); err != nil {
		return nil, err
	}

	// Post-filter: normalized, date-ranged, completed-only.
	pipeline := []bson.M{}
	if !hospital.IsZero() {
		pipeline = append(pipeline, bson.M{"$match": bson.M{"hospital": hospital}})
	}
	pipeline = append(pipeline, visitFields())
	if rng := dateRange(start, end); len(rng) > 0 {
		pipeline = append(pipeline, bson.M{"$match": bson.M{"visitDate": rng}})
	}
	pipeline = append(pipeline, completedOnly, bson.M{"$limit": debugSampleSize})

	var postSample []bson.M
	cursor, err = coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	if err := cursor.All(ctx, &postSample); err != nil {
		return nil, err
	}

	if preSample == nil {
		preSample = []bson.M{}
	}
	if postSample == nil {
		postSample = []bson.M{}
	}

	return bson.M{
		"hospital":         hospital,
		"startDate":        start,
		"endDate":          end,
		"preFilterCount":   preCount,
		"preFilterSample":  preSample,
		"postFilterSample": postSample,
	}, nil
}

func merge(dst bson.M, src bson.M) bson.M {
	out := bson.M{}
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range src {
		out[k] = v
	}
	return out
}
