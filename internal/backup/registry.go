package backup

import (
	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/smallbiznis/escolar/internal/invoice/domain"
	schooldomain "github.com/smallbiznis/escolar/internal/school/domain"
	"gorm.io/datatypes"
)

// registry returns fresh entity sets in dependency order. Execution logs are
// not included: they have no documentId and are not restorable state.
func registry() []entitySet {
	return []entitySet{
		&entity[schooldomain.Company]{
			name:  "companies",
			key:   func(v *schooldomain.Company) (snowflake.ID, string) { return v.ID, v.DocumentID },
			setID: func(v *schooldomain.Company, id snowflake.ID) { v.ID = id },
		},
		&entity[schooldomain.Student]{
			name:  "students",
			key:   func(v *schooldomain.Student) (snowflake.ID, string) { return v.ID, v.DocumentID },
			setID: func(v *schooldomain.Student, id snowflake.ID) { v.ID = id },
		},
		&entity[schooldomain.Guardian]{
			name:  "guardians",
			key:   func(v *schooldomain.Guardian) (snowflake.ID, string) { return v.ID, v.DocumentID },
			setID: func(v *schooldomain.Guardian, id snowflake.ID) { v.ID = id },
		},
		&entity[schooldomain.Classroom]{
			name:  "classrooms",
			key:   func(v *schooldomain.Classroom) (snowflake.ID, string) { return v.ID, v.DocumentID },
			setID: func(v *schooldomain.Classroom, id snowflake.ID) { v.ID = id },
		},
		&entity[schooldomain.SchoolPeriod]{
			name:  "school_periods",
			key:   func(v *schooldomain.SchoolPeriod) (snowflake.ID, string) { return v.ID, v.DocumentID },
			setID: func(v *schooldomain.SchoolPeriod, id snowflake.ID) { v.ID = id },
		},
		&entity[schooldomain.Service]{
			name:  "services",
			key:   func(v *schooldomain.Service) (snowflake.ID, string) { return v.ID, v.DocumentID },
			setID: func(v *schooldomain.Service, id snowflake.ID) { v.ID = id },
		},
		&entity[schooldomain.Employee]{
			name:  "employees",
			key:   func(v *schooldomain.Employee) (snowflake.ID, string) { return v.ID, v.DocumentID },
			setID: func(v *schooldomain.Employee, id snowflake.ID) { v.ID = id },
		},
		&entity[schooldomain.Enrollment]{
			name:  "enrollments",
			key:   func(v *schooldomain.Enrollment) (snowflake.ID, string) { return v.ID, v.DocumentID },
			setID: func(v *schooldomain.Enrollment, id snowflake.ID) { v.ID = id },
			detach: func(v *schooldomain.Enrollment) {
				v.StudentID = nil
				v.ClassroomID = nil
				v.SchoolPeriodID = nil
				v.GuardianIDs = nil
				v.ServiceIDs = nil
				v.EmployeeIDs = nil
			},
			links: enrollmentLinks,
		},
		&entity[invoicedomain.Invoice]{
			name:  "invoices",
			key:   func(v *invoicedomain.Invoice) (snowflake.ID, string) { return v.ID, v.DocumentID },
			setID: func(v *invoicedomain.Invoice, id snowflake.ID) { v.ID = id },
			detach: func(v *invoicedomain.Invoice) {
				v.EnrollmentID = nil
				v.EmployeeID = nil
				v.GuardianID = nil
			},
			links: invoiceLinks,
		},
	}
}

func enrollmentLinks(v *schooldomain.Enrollment, resolve resolveFunc) map[string]any {
	fields := map[string]any{}
	if id, ok := resolveOne(resolve, "students", v.StudentID); ok {
		fields["student_id"] = id
	}
	if id, ok := resolveOne(resolve, "classrooms", v.ClassroomID); ok {
		fields["classroom_id"] = id
	}
	if id, ok := resolveOne(resolve, "school_periods", v.SchoolPeriodID); ok {
		fields["school_period_id"] = id
	}
	if len(v.GuardianIDs) > 0 {
		fields["guardian_ids"] = datatypes.NewJSONSlice(resolveAll(resolve, "guardians", v.GuardianIDs))
	}
	if len(v.ServiceIDs) > 0 {
		fields["service_ids"] = datatypes.NewJSONSlice(resolveAll(resolve, "services", v.ServiceIDs))
	}
	if len(v.EmployeeIDs) > 0 {
		fields["employee_ids"] = datatypes.NewJSONSlice(resolveAll(resolve, "employees", v.EmployeeIDs))
	}
	return fields
}

func invoiceLinks(v *invoicedomain.Invoice, resolve resolveFunc) map[string]any {
	fields := map[string]any{}
	if id, ok := resolveOne(resolve, "enrollments", v.EnrollmentID); ok {
		fields["enrollment_id"] = id
	}
	if id, ok := resolveOne(resolve, "employees", v.EmployeeID); ok {
		fields["employee_id"] = id
	}
	if id, ok := resolveOne(resolve, "guardians", v.GuardianID); ok {
		fields["guardian_id"] = id
	}
	return fields
}
