package identity

// Identity-provider issuers of the festival tenants.
const (
	IssuerAD  = "https://login.microsoftonline.com/158e6d17-f3d5-4365-8428-26dfc74a9d27/v2.0"
	IssuerB2C = "https://seiryofesb2c.b2clogin.com/450b2222-dcb5-471d-9657-bb4ee50acd97/v2.0/"
)

// DefaultDirectory returns the production membership table. A role
// directory file can override any part of it (see config.LoadDirectory).
func DefaultDirectory() Directory {
	return Directory{
		Memberships: map[Role]string{
			RoleAdmin:   "5c091517-25de-44bc-9e42-ffcb8539435c",
			RoleEntry:   "63a40184-8dab-43b4-8367-54e84ace6e2a",
			RoleOwner:   "a577d858-64bf-4815-aaf6-d893c654e92e",
			RoleParents: "ecd46dae-d84b-42d8-9357-ac24d480a168",
			RoleStudent: "865bb05d-cb7d-4919-b18d-8b977ec0499b",
			RoleTeacher: "0a8ee476-cd37-4c31-bd6e-c34e750574f4",
			RoleChief:   "67e48f08-22e0-4ec4-9674-1428aaa5c055",
			RoleGuest:   "94c45b57-680c-4b5b-a98b-d78f1fd90d71",
			// on-site registrations are assigned by the deployment
			RoleVisited: "",
		},
		Issuers: map[Role]string{
			RoleAD:  IssuerAD,
			RoleB2C: IssuerB2C,
		},
		Composites: map[Role][]Role{
			RoleSchool:         {RoleTeacher, RoleStudent, RoleVisited},
			RoleB2CVisited:     {RoleB2C, RoleVisited},
			RoleVisitedParents: {RoleVisited, RoleParents},
			RoleVisitedSchool:  {RoleVisited, RoleSchool},
			RoleSchoolParents:  {RoleSchool, RoleParents},
		},
		ClassParents: map[string]string{
			"11r": "12c1a97c-3d99-4c4b-b70b-28e9c0c44652",
			"12r": "59497287-931a-4c12-84d3-58406988210d",
			"13r": "0ed9e48e-b2a0-4fb6-9045-a266d64a6248",
			"14r": "1372ce7a-3151-4657-81f2-82ec0c75082e",
			"15r": "0f860b70-ae51-4663-b69b-a7d972da9037",
			"16r": "df919a87-e198-4c9a-9ee5-5c7763aa68c0",
			"17r": "7487b933-88f4-4d11-b055-9eee011d917b",
			"18r": "d2d27aa4-8a2e-43af-843c-aff23bc68310",
			"21r": "5be0f149-9d15-472b-b25f-5eb874ace869",
			"22r": "6fa005c2-a225-4e5b-80dd-b5b7f72fce1a",
			"23r": "fdd3031f-105a-4369-ac7a-028cf00ddd91",
			"24r": "c599b4e8-a5cb-4bd2-aaea-e32e1719d8d1",
			"25r": "cf04417a-324b-4581-b6a6-efffe9574f66",
			"26r": "94729412-e00b-4a02-9436-784b7c0f9dee",
			"27r": "296d09c8-fc79-4787-845c-68abdc705771",
			"28r": "c023ca3d-9618-4950-b2e2-50c064bcbe75",
			"31r": "3d983fe1-8c30-4540-85e7-53b4ca98eab6",
			"32r": "7ffec498-ceb2-487c-b017-3098fb1b0d3a",
			"33r": "bcb43367-585d-44a7-9896-36d85aeeda6c",
			"34r": "5a619348-a1c8-46c1-ba47-83bdeaf4c2b4",
			"35r": "b591ff60-1217-4253-b948-d0801509511a",
			"36r": "b912ad1e-c692-42d0-9115-74bc62a4158e",
			"37r": "2fe29736-f843-4d4a-aec5-100c8804062e",
			"38r": "28711a00-fca2-4fb7-90cb-5823d1feb9d6",
		},
	}
}

// MustDefaultResolver returns a Resolver over DefaultDirectory.
func MustDefaultResolver() *Resolver {
	r, err := NewResolver(DefaultDirectory())
	if err != nil {
		panic(err)
	}
	return r
}
